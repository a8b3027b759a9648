package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

type fakeScheduleSource struct {
	schedules []domain.StoreSchedule
	err       error
}

func (f *fakeScheduleSource) ListStoreSchedules(context.Context) ([]domain.StoreSchedule, error) {
	return f.schedules, f.err
}

type fakeSessionSource struct {
	activeStores map[string]bool
}

func (f *fakeSessionSource) GetActiveSession(_ context.Context, storeID string) (*domain.TransactionSession, error) {
	if f.activeStores[storeID] {
		return &domain.TransactionSession{ID: "sess-" + storeID, StoreID: storeID, Active: true}, nil
	}
	return nil, store.ErrNoActiveSession
}

type fakeSessionControl struct {
	started  []string
	ended    []string
	startErr error
}

func (f *fakeSessionControl) StartScheduledSession(_ context.Context, storeID string, _ string) (*domain.TransactionSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, storeID)
	return &domain.TransactionSession{StoreID: storeID, Active: true, Scheduled: true}, nil
}

func (f *fakeSessionControl) EndScheduledSession(_ context.Context, storeID string, _ string) (*domain.TransactionSession, error) {
	f.ended = append(f.ended, storeID)
	return &domain.TransactionSession{StoreID: storeID}, nil
}

func fixedClock(value string) Clock {
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return parsed.UTC() }
}

func windowSchedule(storeID, start, end string) domain.StoreSchedule {
	return domain.StoreSchedule{
		StoreID:         storeID,
		ScheduleEnabled: true,
		ScheduleStart:   start,
		ScheduleEnd:     end,
		ScheduleActorID: "scheduler",
	}
}

func TestSessionSchedulerStartsAtExactTime(t *testing.T) {
	schedules := &fakeScheduleSource{schedules: []domain.StoreSchedule{windowSchedule("store-a", "08:00", "22:00")}}
	sessions := &fakeSessionSource{activeStores: map[string]bool{}}
	control := &fakeSessionControl{}

	sched := NewSessionScheduler(schedules, sessions, control, nil).WithClock(fixedClock("2026-09-01 08:00"))
	sched.Tick(context.Background())

	require.Equal(t, []string{"store-a"}, control.started)
	require.Empty(t, control.ended)
}

func TestSessionSchedulerRecoversMidWindow(t *testing.T) {
	schedules := &fakeScheduleSource{schedules: []domain.StoreSchedule{windowSchedule("store-a", "08:00", "22:00")}}
	sessions := &fakeSessionSource{activeStores: map[string]bool{}}
	control := &fakeSessionControl{}

	// 13:37 is well past the start time; a store with no session inside
	// its window still gets one started.
	sched := NewSessionScheduler(schedules, sessions, control, nil).WithClock(fixedClock("2026-09-01 13:37"))
	sched.Tick(context.Background())

	require.Equal(t, []string{"store-a"}, control.started)
}

func TestSessionSchedulerLeavesActiveSessionAlone(t *testing.T) {
	schedules := &fakeScheduleSource{schedules: []domain.StoreSchedule{windowSchedule("store-a", "08:00", "22:00")}}
	sessions := &fakeSessionSource{activeStores: map[string]bool{"store-a": true}}
	control := &fakeSessionControl{}

	sched := NewSessionScheduler(schedules, sessions, control, nil).WithClock(fixedClock("2026-09-01 13:37"))
	sched.Tick(context.Background())

	require.Empty(t, control.started)
	require.Empty(t, control.ended)
}

func TestSessionSchedulerEndsAtExactTime(t *testing.T) {
	schedules := &fakeScheduleSource{schedules: []domain.StoreSchedule{windowSchedule("store-a", "08:00", "22:00")}}
	sessions := &fakeSessionSource{activeStores: map[string]bool{"store-a": true}}
	control := &fakeSessionControl{}

	sched := NewSessionScheduler(schedules, sessions, control, nil).WithClock(fixedClock("2026-09-01 22:00"))
	sched.Tick(context.Background())

	require.Equal(t, []string{"store-a"}, control.ended)
	require.Empty(t, control.started)
}

func TestSessionSchedulerDoesNothingOutsideWindow(t *testing.T) {
	schedules := &fakeScheduleSource{schedules: []domain.StoreSchedule{windowSchedule("store-a", "08:00", "22:00")}}
	sessions := &fakeSessionSource{activeStores: map[string]bool{}}
	control := &fakeSessionControl{}

	sched := NewSessionScheduler(schedules, sessions, control, nil).WithClock(fixedClock("2026-09-01 23:30"))
	sched.Tick(context.Background())

	require.Empty(t, control.started)
	require.Empty(t, control.ended)
}

func TestSessionSchedulerSkipsDisabledSchedules(t *testing.T) {
	disabled := windowSchedule("store-a", "08:00", "22:00")
	disabled.ScheduleEnabled = false
	schedules := &fakeScheduleSource{schedules: []domain.StoreSchedule{disabled}}
	sessions := &fakeSessionSource{activeStores: map[string]bool{}}
	control := &fakeSessionControl{}

	sched := NewSessionScheduler(schedules, sessions, control, nil).WithClock(fixedClock("2026-09-01 08:00"))
	sched.Tick(context.Background())

	require.Empty(t, control.started)
}

func TestSessionSchedulerToleratesManualStartRace(t *testing.T) {
	schedules := &fakeScheduleSource{schedules: []domain.StoreSchedule{windowSchedule("store-a", "08:00", "22:00")}}
	sessions := &fakeSessionSource{activeStores: map[string]bool{}}
	control := &fakeSessionControl{startErr: store.ErrSessionAlreadyActive}

	sched := NewSessionScheduler(schedules, sessions, control, nil).WithClock(fixedClock("2026-09-01 08:00"))
	sched.Tick(context.Background())

	require.Empty(t, control.started)
	require.Empty(t, control.ended)
}

func TestInsideWindowWrapsMidnight(t *testing.T) {
	require.True(t, insideWindow("23:30", "22:00", "06:00"))
	require.True(t, insideWindow("03:00", "22:00", "06:00"))
	require.False(t, insideWindow("12:00", "22:00", "06:00"))
	require.False(t, insideWindow("22:00", "22:00", "06:00"))
	require.False(t, insideWindow("10:00", "09:00", "09:00"))
	require.False(t, insideWindow("bogus", "09:00", "17:00"))
}
