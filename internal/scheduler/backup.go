package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tokopos/internal/backup"
	"tokopos/internal/domain"
	"tokopos/internal/metrics"
)

// dedupWindow guards against the same HH:MM firing twice, e.g. when a tick
// lands at :59.9 and the next at :00.1 of the same minute.
const dedupWindow = 2 * time.Minute

// BackupRecorder persists the last successful run time for a store.
type BackupRecorder interface {
	RecordBackupRun(ctx context.Context, storeID string, at time.Time) error
}

// BackupScheduler fires store backups when the wall clock matches the
// configured time and frequency. The run time is recorded only after the
// exporter succeeds, so a failed backup is retried at the next match.
type BackupScheduler struct {
	schedules ScheduleSource
	recorder  BackupRecorder
	exporter  backup.Exporter
	log       *zap.Logger
	now       Clock
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewBackupScheduler(schedules ScheduleSource, recorder BackupRecorder, exporter backup.Exporter, logger *zap.Logger) *BackupScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupScheduler{
		schedules: schedules,
		recorder:  recorder,
		exporter:  exporter,
		log:       logger,
		now:       time.Now,
		interval:  DefaultInterval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// WithClock pins the scheduler's clock. Test hook.
func (b *BackupScheduler) WithClock(now Clock) *BackupScheduler {
	b.now = now
	return b
}

func (b *BackupScheduler) Start(ctx context.Context) {
	b.log.Info("backup scheduler started", zap.Duration("interval", b.interval))
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stop:
				return
			case <-ticker.C:
				b.Tick(ctx)
			}
		}
	}()
}

func (b *BackupScheduler) Stop() {
	close(b.stop)
	<-b.done
	b.log.Info("backup scheduler stopped")
}

// Tick evaluates every backup schedule once against the current clock.
func (b *BackupScheduler) Tick(ctx context.Context) {
	metrics.SchedulerTicksTotal.WithLabelValues("backup").Inc()

	schedules, err := b.schedules.ListStoreSchedules(ctx)
	if err != nil {
		b.log.Error("failed to list store schedules", zap.Error(err))
		return
	}

	now := b.now().UTC()
	for _, schedule := range schedules {
		if schedule.Backup == nil || !schedule.Backup.Enabled {
			continue
		}
		if !due(*schedule.Backup, now) {
			continue
		}
		b.run(ctx, schedule.StoreID, *schedule.Backup, now)
	}
}

func due(schedule domain.BackupSchedule, now time.Time) bool {
	if hhmm(now) != schedule.Time {
		return false
	}
	switch schedule.Frequency {
	case domain.BackupDaily:
	case domain.BackupWeekly:
		if int(now.Weekday()) != schedule.DayOfWeek {
			return false
		}
	case domain.BackupMonthly:
		if now.Day() != schedule.DayOfMonth {
			return false
		}
	default:
		return false
	}
	if schedule.LastRunAt != nil && now.Sub(*schedule.LastRunAt) < dedupWindow {
		return false
	}
	return true
}

func (b *BackupScheduler) run(ctx context.Context, storeID string, schedule domain.BackupSchedule, now time.Time) {
	if err := b.exporter.Export(ctx, storeID, schedule.Options); err != nil {
		metrics.BackupRunsTotal.WithLabelValues("failure").Inc()
		b.log.Error("scheduled backup failed",
			zap.String("store_id", storeID),
			zap.String("frequency", schedule.Frequency),
			zap.Error(err))
		return
	}
	if err := b.recorder.RecordBackupRun(ctx, storeID, now); err != nil {
		b.log.Error("failed to record backup run",
			zap.String("store_id", storeID), zap.Error(err))
	}
	metrics.BackupRunsTotal.WithLabelValues("success").Inc()
	b.log.Info("scheduled backup completed",
		zap.String("store_id", storeID),
		zap.String("frequency", schedule.Frequency))
}
