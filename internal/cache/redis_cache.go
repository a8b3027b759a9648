package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisSessionCache struct {
	client *redis.Client
}

func NewRedisSessionCache(addr string, password string, db int) *RedisSessionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSessionCache{client: client}
}

func (c *RedisSessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}

func sessionKey(storeID string) string {
	return "session-status:" + storeID
}

func (c *RedisSessionCache) Get(ctx context.Context, storeID string) (*SessionStatus, bool, error) {
	val, err := c.client.Get(ctx, sessionKey(storeID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var status SessionStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, false, err
	}
	return &status, true, nil
}

func (c *RedisSessionCache) Set(ctx context.Context, storeID string, value *SessionStatus, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(storeID), payload, ttl).Err()
}

func (c *RedisSessionCache) Invalidate(ctx context.Context, storeID string) error {
	return c.client.Del(ctx, sessionKey(storeID)).Err()
}
