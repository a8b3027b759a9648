package cache

import (
	"context"
	"time"

	"tokopos/internal/domain"
)

// SessionStatus is the cached answer to "is a session open for this store".
type SessionStatus struct {
	Active  bool                       `json:"active"`
	Session *domain.TransactionSession `json:"session,omitempty"`
}

type SessionCache interface {
	Get(ctx context.Context, storeID string) (*SessionStatus, bool, error)
	Set(ctx context.Context, storeID string, value *SessionStatus, ttl time.Duration) error
	Invalidate(ctx context.Context, storeID string) error
}

type NoopSessionCache struct{}

func (NoopSessionCache) Get(_ context.Context, _ string) (*SessionStatus, bool, error) {
	return nil, false, nil
}

func (NoopSessionCache) Set(_ context.Context, _ string, _ *SessionStatus, _ time.Duration) error {
	return nil
}

func (NoopSessionCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
