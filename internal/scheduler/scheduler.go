// Package scheduler runs the two wall-clock pollers: session auto start and
// stop, and scheduled backups. Both sample store schedules once a minute
// and compare the clock's "HH:MM" against the configured times; neither is
// event-driven.
package scheduler

import (
	"context"
	"errors"
	"time"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

const DefaultInterval = time.Minute

// Clock is injectable so tests can pin the wall clock.
type Clock func() time.Time

// ScheduleSource yields the per-store schedule configuration on every tick.
type ScheduleSource interface {
	ListStoreSchedules(ctx context.Context) ([]domain.StoreSchedule, error)
}

// SessionControl is the slice of the service the session poller drives.
type SessionControl interface {
	StartScheduledSession(ctx context.Context, storeID string, actorID string) (*domain.TransactionSession, error)
	EndScheduledSession(ctx context.Context, storeID string, actorID string) (*domain.TransactionSession, error)
}

// SessionSource answers whether a store scope currently has an active
// session. The repository satisfies it directly.
type SessionSource interface {
	GetActiveSession(ctx context.Context, storeID string) (*domain.TransactionSession, error)
}

// hhmm formats a time the way schedules store it.
func hhmm(t time.Time) string {
	return t.Format("15:04")
}

func minutesOf(value string) (int, bool) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return parsed.Hour()*60 + parsed.Minute(), true
}

// insideWindow reports whether now lies strictly inside (start, end),
// treating end <= start as a window that wraps past midnight.
func insideWindow(now string, start string, end string) bool {
	n, ok := minutesOf(now)
	if !ok {
		return false
	}
	s, ok := minutesOf(start)
	if !ok {
		return false
	}
	e, ok := minutesOf(end)
	if !ok {
		return false
	}
	if s == e {
		return false
	}
	if s < e {
		return n > s && n < e
	}
	return n > s || n < e
}

func isSessionGone(err error) bool {
	return errors.Is(err, store.ErrNoActiveSession) || errors.Is(err, store.ErrSessionInactive)
}
