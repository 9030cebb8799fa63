// Package scheduler is the persistent trigger loop: scheduled tasks fire by
// cron expression, interval, or one-shot deadline, and the in-memory timer
// set is reconstructed from durable storage on startup.
package scheduler

import "time"

// ScheduleKind discriminates the tagged union Schedule carries. Only the
// fields named by the Kind are meaningful; this mirrors the relational
// store's schedule_type/schedule_expression/schedule_interval/
// schedule_execute_at columns (REDESIGN FLAGS: tagged unions for schedule
// and action records).
type ScheduleKind string

const (
	ScheduleCron     ScheduleKind = "cron"
	ScheduleInterval ScheduleKind = "interval"
	ScheduleOnce     ScheduleKind = "once"
)

// Schedule is Cron(expr,tz) | Interval(ms) | Once(deadline). The cron
// timezone is Task.Timezone (spec.md §6 has a single timezone column shared
// by the schedule and the task's options), not a separate field here.
type Schedule struct {
	Kind ScheduleKind

	CronExpr string // Kind == ScheduleCron

	IntervalMS int64 // Kind == ScheduleInterval

	ExecuteAt time.Time // Kind == ScheduleOnce
}

// ActionKind discriminates the Action tagged union.
type ActionKind string

const (
	ActionHTTP     ActionKind = "http"
	ActionWebhook  ActionKind = "webhook"
	ActionFile     ActionKind = "file"
	ActionDatabase ActionKind = "database"
	ActionEmail    ActionKind = "email"
)

// Action is Http(cfg) | Webhook(cfg) | File(cfg) | Database(cfg) | Email(cfg).
// Config carries the type-specific parameters (method/url/headers/body for
// http, bucket/key/body for file, dsn/query/args for database, ...).
type Action struct {
	Kind   ActionKind
	Config map[string]any
}

// Task is a persisted scheduled task (spec.md §3's Scheduled Task).
type Task struct {
	ID          string
	Name        string
	Description string
	Schedule    Schedule
	Action      Action

	Timezone    string
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	Enabled     bool

	Tags []string

	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
}

// HistoryStatus is a terminal (or pending) status of an execution history row.
type HistoryStatus string

const (
	HistoryPending HistoryStatus = "running"
	HistorySuccess HistoryStatus = "success"
	HistoryFailed  HistoryStatus = "failed"
	HistoryTimeout HistoryStatus = "timeout"
	HistoryAborted HistoryStatus = "aborted"
)

// HistoryEntry is one row of the execution history table (spec.md §3's
// Execution History Entry).
type HistoryEntry struct {
	ExecutionID string
	TaskID      string
	StartTime   time.Time
	EndTime     time.Time
	Status      HistoryStatus
	Result      map[string]any
	Error       string
}
