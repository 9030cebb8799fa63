package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/flowcore/taskrunner/internal/logger"
	"github.com/flowcore/taskrunner/internal/scheduler/store"
)

// armed tracks how a given task's schedule is currently wired into the
// process's timer set, so Scheduler can disarm it again on update/disable.
type armed struct {
	cronID cron.EntryID
	cron   bool

	ticker     *time.Ticker
	tickerStop chan struct{}

	timer *time.Timer
}

// Scheduler is the trigger loop of spec.md §4.8: it arms an in-memory timer
// per enabled task (cron expression under a cron engine, interval ticker, or
// one-shot deadline timer) and dispatches through exec on fire. Timers live
// only in memory; restart re-arms from the store.
type Scheduler struct {
	store store.Store
	exec  *Executor
	log   logger.Logger

	cronEngine *cron.Cron

	mu    sync.Mutex
	armed map[string]*armed // taskID -> armed entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Scheduler backed by st, dispatching fires through exec.
func New(st store.Store, exec *Executor, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Default
	}
	return &Scheduler{
		store:      st,
		exec:       exec,
		log:        log,
		cronEngine: cron.New(),
		armed:      make(map[string]*armed),
		stopCh:     make(chan struct{}),
	}
}

// Start sweeps dangling "running" history rows, arms every enabled task from
// the store, starts the cron engine, and blocks until ctx is done or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) error {
	if n, err := s.store.SweepDanglingRunning(ctx); err != nil {
		s.log.Warnf("scheduler: sweep dangling history rows: %v", err)
	} else if n > 0 {
		s.log.Infof("scheduler: marked %d dangling running history row(s) as aborted", n)
	}

	rows, err := s.store.ListEnabledTasks(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list enabled tasks: %w", err)
	}
	for _, row := range rows {
		task, err := rowToTask(row)
		if err != nil {
			s.log.Errorf("scheduler: decode task %s: %v", row.ID, err)
			continue
		}
		if err := s.arm(task); err != nil {
			s.log.Errorf("scheduler: arm task %s: %v", task.ID, err)
		}
	}

	s.cronEngine.Start()

	select {
	case <-ctx.Done():
	case <-s.stopCh:
	}

	s.cronEngine.Stop()
	s.mu.Lock()
	for _, a := range s.armed {
		s.disarmLocked(a)
	}
	s.armed = make(map[string]*armed)
	s.mu.Unlock()

	return nil
}

// Stop releases Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// arm installs the in-memory timer for task.Schedule. Callers must hold no
// lock; arm takes s.mu itself.
func (s *Scheduler) arm(task Task) error {
	switch task.Schedule.Kind {
	case ScheduleCron:
		spec := task.Schedule.CronExpr
		if task.Timezone != "" {
			if _, err := time.LoadLocation(task.Timezone); err != nil {
				return fmt.Errorf("scheduler: load timezone %q: %w", task.Timezone, err)
			}
			spec = "CRON_TZ=" + task.Timezone + " " + spec
		}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		schedule, err := parser.Parse(spec)
		if err != nil {
			return fmt.Errorf("scheduler: parse cron expression %q: %w", task.Schedule.CronExpr, err)
		}
		id := s.cronEngine.Schedule(schedule, cron.FuncJob(func() {
			s.fire(task)
		}))

		s.mu.Lock()
		s.armed[task.ID] = &armed{cronID: id, cron: true}
		s.mu.Unlock()
		return nil

	case ScheduleInterval:
		if task.Schedule.IntervalMS <= 0 {
			return fmt.Errorf("scheduler: interval must be positive, got %dms", task.Schedule.IntervalMS)
		}
		ticker := time.NewTicker(time.Duration(task.Schedule.IntervalMS) * time.Millisecond)
		stop := make(chan struct{})
		go func() {
			for {
				select {
				case <-ticker.C:
					s.fire(task)
				case <-stop:
					return
				}
			}
		}()

		s.mu.Lock()
		s.armed[task.ID] = &armed{ticker: ticker, tickerStop: stop}
		s.mu.Unlock()
		return nil

	case ScheduleOnce:
		delay := time.Until(task.Schedule.ExecuteAt)
		if delay < 0 {
			return fmt.Errorf("scheduler: one-shot executeAt %s is in the past", task.Schedule.ExecuteAt)
		}
		timer := time.AfterFunc(delay, func() {
			s.fire(task)
			// self-removing: the timer has already fired once
			s.mu.Lock()
			delete(s.armed, task.ID)
			s.mu.Unlock()
		})

		s.mu.Lock()
		s.armed[task.ID] = &armed{timer: timer}
		s.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("scheduler: unknown schedule kind %q", task.Schedule.Kind)
	}
}

func (s *Scheduler) disarm(taskID string) {
	s.mu.Lock()
	a, ok := s.armed[taskID]
	if ok {
		delete(s.armed, taskID)
	}
	s.mu.Unlock()
	if ok {
		s.disarmLocked(a)
	}
}

func (s *Scheduler) disarmLocked(a *armed) {
	switch {
	case a.cron:
		s.cronEngine.Remove(a.cronID)
	case a.ticker != nil:
		a.ticker.Stop()
		close(a.tickerStop)
	case a.timer != nil:
		a.timer.Stop()
	}
}

// IsScheduled reports whether taskID currently has an armed in-memory timer.
func (s *Scheduler) IsScheduled(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[taskID]
	return ok
}

func (s *Scheduler) fire(task Task) {
	ctx := logger.WithContext(context.Background(), s.log)
	s.exec.Execute(ctx, task)
}

// Create inserts task (assigning it a uuid and timestamps) and, if enabled,
// arms it.
func (s *Scheduler) Create(ctx context.Context, task Task) (Task, error) {
	task.ID = uuid.NewString()
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	row, err := taskToRow(task)
	if err != nil {
		return Task{}, err
	}
	if err := s.store.CreateTask(ctx, row); err != nil {
		return Task{}, fmt.Errorf("scheduler: create task: %w", err)
	}
	if task.Enabled {
		if err := s.arm(task); err != nil {
			return Task{}, err
		}
	}
	return task, nil
}

// Get returns the stored task by id.
func (s *Scheduler) Get(ctx context.Context, id string) (Task, bool, error) {
	row, found, err := s.store.GetTask(ctx, id)
	if err != nil || !found {
		return Task{}, found, err
	}
	t, err := rowToTask(row)
	return t, true, err
}

// Update rewrites task's row and, if it is (or becomes) enabled,
// unschedules then reschedules it.
func (s *Scheduler) Update(ctx context.Context, task Task) error {
	task.UpdatedAt = time.Now()
	row, err := taskToRow(task)
	if err != nil {
		return err
	}
	if err := s.store.UpdateTask(ctx, row); err != nil {
		return fmt.Errorf("scheduler: update task: %w", err)
	}

	s.disarm(task.ID)
	if task.Enabled {
		return s.arm(task)
	}
	return nil
}

// Delete unschedules then deletes task id.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	s.disarm(id)
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("scheduler: delete task: %w", err)
	}
	return nil
}

// Enable sets the enabled flag and arms the task.
func (s *Scheduler) Enable(ctx context.Context, id string) error {
	task, found, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("scheduler: task %s not found", id)
	}
	if err := s.store.SetEnabled(ctx, id, true); err != nil {
		return fmt.Errorf("scheduler: enable task: %w", err)
	}
	task.Enabled = true
	return s.arm(task)
}

// Disable unschedules and clears the enabled flag.
func (s *Scheduler) Disable(ctx context.Context, id string) error {
	s.disarm(id)
	if err := s.store.SetEnabled(ctx, id, false); err != nil {
		return fmt.Errorf("scheduler: disable task: %w", err)
	}
	return nil
}

// ExecuteNow bypasses the timer and dispatches task id immediately.
func (s *Scheduler) ExecuteNow(ctx context.Context, id string) error {
	task, found, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("scheduler: task %s not found", id)
	}
	s.exec.Execute(ctx, task)
	return nil
}

// ListHistory returns up to limit history rows for taskID, newest first.
func (s *Scheduler) ListHistory(ctx context.Context, taskID string, limit int) ([]HistoryEntry, error) {
	rows, err := s.store.ListHistory(ctx, taskID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		h, err := rowToHistory(r)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
