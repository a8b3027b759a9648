package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tokopos/internal/domain"
	"tokopos/internal/metrics"
	"tokopos/internal/store"
)

// SessionScheduler opens and closes register sessions against the
// configured store windows. Besides the exact start-time match it also
// recovers mid-window: a store found inside its window with no active
// session gets one started, so a missed tick or a restart does not leave
// the store closed all day.
type SessionScheduler struct {
	schedules ScheduleSource
	sessions  SessionSource
	control   SessionControl
	log       *zap.Logger
	now       Clock
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewSessionScheduler(schedules ScheduleSource, sessions SessionSource, control SessionControl, logger *zap.Logger) *SessionScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionScheduler{
		schedules: schedules,
		sessions:  sessions,
		control:   control,
		log:       logger,
		now:       time.Now,
		interval:  DefaultInterval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// WithClock pins the scheduler's clock. Test hook.
func (s *SessionScheduler) WithClock(now Clock) *SessionScheduler {
	s.now = now
	return s
}

func (s *SessionScheduler) Start(ctx context.Context) {
	s.log.Info("session scheduler started", zap.Duration("interval", s.interval))
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

func (s *SessionScheduler) Stop() {
	close(s.stop)
	<-s.done
	s.log.Info("session scheduler stopped")
}

// Tick evaluates every store schedule once against the current clock.
func (s *SessionScheduler) Tick(ctx context.Context) {
	metrics.SchedulerTicksTotal.WithLabelValues("session").Inc()

	schedules, err := s.schedules.ListStoreSchedules(ctx)
	if err != nil {
		s.log.Error("failed to list store schedules", zap.Error(err))
		return
	}

	now := hhmm(s.now().UTC())
	for _, schedule := range schedules {
		s.evaluate(ctx, schedule, now)
	}
}

func (s *SessionScheduler) evaluate(ctx context.Context, schedule domain.StoreSchedule, now string) {
	if !schedule.ScheduleEnabled || schedule.ScheduleStart == "" || schedule.ScheduleEnd == "" {
		return
	}

	active := true
	if _, err := s.sessions.GetActiveSession(ctx, schedule.StoreID); err != nil {
		if !isSessionGone(err) {
			s.log.Error("failed to check active session",
				zap.String("store_id", schedule.StoreID), zap.Error(err))
			return
		}
		active = false
	}

	switch {
	case now == schedule.ScheduleEnd && active:
		if _, err := s.control.EndScheduledSession(ctx, schedule.StoreID, schedule.ScheduleActorID); err != nil {
			if isSessionGone(err) {
				return
			}
			s.log.Error("scheduled session end failed",
				zap.String("store_id", schedule.StoreID), zap.Error(err))
			return
		}
		s.log.Info("scheduled session ended",
			zap.String("store_id", schedule.StoreID), zap.String("at", now))

	case !active && (now == schedule.ScheduleStart || insideWindow(now, schedule.ScheduleStart, schedule.ScheduleEnd)):
		recovered := now != schedule.ScheduleStart
		if _, err := s.control.StartScheduledSession(ctx, schedule.StoreID, schedule.ScheduleActorID); err != nil {
			// Lost a race with a manual start, nothing to do.
			if errors.Is(err, store.ErrSessionAlreadyActive) {
				return
			}
			s.log.Error("scheduled session start failed",
				zap.String("store_id", schedule.StoreID), zap.Error(err))
			return
		}
		s.log.Info("scheduled session started",
			zap.String("store_id", schedule.StoreID),
			zap.String("at", now),
			zap.Bool("recovered", recovered))
	}
}
