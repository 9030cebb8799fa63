package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowcore/taskrunner/internal/scheduler/store"
	"github.com/flowcore/taskrunner/internal/test"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	exec := NewExecutor(st, nil, nil, test.NewLogger())
	return New(st, exec, test.NewLogger())
}

// TestOneShotFiresOnceAndSelfRemoves is scenario S6: create a one-shot task
// 300ms out, wait for it to fire, and confirm it both recorded a
// successful history entry and removed its own timer.
func TestOneShotFiresOnceAndSelfRemoves(t *testing.T) {
	sched := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = sched.Start(ctx) }()
	defer sched.Stop()

	task, err := sched.Create(ctx, Task{
		Name:     "one-shot",
		Schedule: Schedule{Kind: ScheduleOnce, ExecuteAt: time.Now().Add(300 * time.Millisecond)},
		Action:   Action{Kind: ActionEmail, Config: map[string]any{}},
		Enabled:  true,
	})
	require.NoError(t, err)
	require.True(t, sched.IsScheduled(task.ID))

	require.Eventually(t, func() bool {
		history, err := sched.ListHistory(ctx, task.ID, 10)
		return err == nil && len(history) == 1 && history[0].Status == HistorySuccess
	}, 2*time.Second, 20*time.Millisecond)

	require.False(t, sched.IsScheduled(task.ID))
}

func TestOneShotRejectsPastDeadline(t *testing.T) {
	sched := newTestScheduler(t)
	_, err := sched.Create(context.Background(), Task{
		Name:     "already-due",
		Schedule: Schedule{Kind: ScheduleOnce, ExecuteAt: time.Now().Add(-time.Hour)},
		Action:   Action{Kind: ActionEmail},
		Enabled:  true,
	})
	require.Error(t, err)
}

func TestDisableUnschedulesAndEnableReschedules(t *testing.T) {
	sched := newTestScheduler(t)
	ctx := context.Background()

	task, err := sched.Create(ctx, Task{
		Name:     "interval-task",
		Schedule: Schedule{Kind: ScheduleInterval, IntervalMS: 50},
		Action:   Action{Kind: ActionEmail},
		Enabled:  true,
	})
	require.NoError(t, err)
	require.True(t, sched.IsScheduled(task.ID))

	require.NoError(t, sched.Disable(ctx, task.ID))
	require.False(t, sched.IsScheduled(task.ID))

	require.NoError(t, sched.Enable(ctx, task.ID))
	require.True(t, sched.IsScheduled(task.ID))

	require.NoError(t, sched.Delete(ctx, task.ID))
	require.False(t, sched.IsScheduled(task.ID))
}

func TestCreateGetRoundTrip(t *testing.T) {
	sched := newTestScheduler(t)
	ctx := context.Background()

	created, err := sched.Create(ctx, Task{
		Name:        "cron-task",
		Description: "runs nightly",
		Schedule:    Schedule{Kind: ScheduleCron, CronExpr: "0 3 * * *"},
		Action:      Action{Kind: ActionHTTP, Config: map[string]any{"url": "https://example.com"}},
		Timezone:    "UTC",
		RetryCount:  2,
		RetryDelay:  time.Second,
		Timeout:     5 * time.Second,
		Tags:        []string{"reporting"},
		Enabled:     true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, found, err := sched.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, created.Name, got.Name)
	require.Equal(t, created.Schedule, got.Schedule)
	require.Equal(t, created.Tags, got.Tags)
}

func TestArmRejectsBadCronExpression(t *testing.T) {
	sched := newTestScheduler(t)
	_, err := sched.Create(context.Background(), Task{
		Name:     "bad-cron",
		Schedule: Schedule{Kind: ScheduleCron, CronExpr: "not a cron expression"},
		Action:   Action{Kind: ActionEmail},
		Enabled:  true,
	})
	require.Error(t, err)
}
