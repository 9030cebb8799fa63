// Package store is the relational persistence layer for scheduled tasks and
// their execution history (spec.md §6). It deals only in flat row types —
// the scheduler package owns the Schedule/Action tagged-union domain model
// and converts to/from these rows, keeping this package free of a dependency
// on the scheduler package.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// TaskRow mirrors the scheduled_tasks table exactly as spec.md §6 lists its
// columns.
type TaskRow struct {
	ID                 string
	Name               string
	Description        string
	ScheduleType        string
	ScheduleExpression  string
	ScheduleInterval    int64 // ms
	ScheduleExecuteAt   string // ISO-8601, empty if not a one-shot schedule
	ActionType          string
	ActionConfig        string // JSON object
	Timezone            string
	RetryCount          int
	RetryDelay          int64 // ms
	Timeout             int64 // ms
	Enabled             bool
	Tags                string // JSON array of strings
	CreatedAt           string
	UpdatedAt           string
	CreatedBy           string
}

// HistoryRow mirrors the execution_history table.
type HistoryRow struct {
	ExecutionID string
	TaskID      string
	StartTime   string
	EndTime     string
	Status      string
	Result      string // JSON object, empty if none
	Error       string
}

// Store is the scheduler's persistence boundary.
type Store interface {
	CreateTask(ctx context.Context, row TaskRow) error
	GetTask(ctx context.Context, id string) (TaskRow, bool, error)
	UpdateTask(ctx context.Context, row TaskRow) error
	DeleteTask(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	ListTasks(ctx context.Context) ([]TaskRow, error)
	ListEnabledTasks(ctx context.Context) ([]TaskRow, error)

	CreateHistory(ctx context.Context, row HistoryRow) error
	UpdateHistory(ctx context.Context, row HistoryRow) error
	ListHistory(ctx context.Context, taskID string, limit int) ([]HistoryRow, error)

	// SweepDanglingRunning marks rows left in the "running" status as
	// "aborted" and returns how many were swept (spec.md §9's durability
	// note: fires in progress when the process dies leave their history
	// row pending forever unless something marks it).
	SweepDanglingRunning(ctx context.Context) (int, error)

	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite-backed Store at dsn and runs
// pending migrations.
func Open(dsn string) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer semantics, spec.md §5

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) CreateTask(ctx context.Context, r TaskRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (
			id, name, description, schedule_type, schedule_expression,
			schedule_interval, schedule_execute_at, action_type, action_config,
			timezone, retry_count, retry_delay, timeout, enabled, tags,
			created_at, updated_at, created_by
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Name, r.Description, r.ScheduleType, r.ScheduleExpression,
		r.ScheduleInterval, r.ScheduleExecuteAt, r.ActionType, r.ActionConfig,
		r.Timezone, r.RetryCount, r.RetryDelay, r.Timeout, boolToInt(r.Enabled), r.Tags,
		r.CreatedAt, r.UpdatedAt, r.CreatedBy,
	)
	return err
}

func (s *sqliteStore) GetTask(ctx context.Context, id string) (TaskRow, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, schedule_type, schedule_expression,
			schedule_interval, schedule_execute_at, action_type, action_config,
			timezone, retry_count, retry_delay, timeout, enabled, tags,
			created_at, updated_at, created_by
		FROM scheduled_tasks WHERE id = ?`, id)

	r, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return TaskRow{}, false, nil
	}
	if err != nil {
		return TaskRow{}, false, err
	}
	return r, true, nil
}

func (s *sqliteStore) UpdateTask(ctx context.Context, r TaskRow) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET
			name = ?, description = ?, schedule_type = ?, schedule_expression = ?,
			schedule_interval = ?, schedule_execute_at = ?, action_type = ?,
			action_config = ?, timezone = ?, retry_count = ?, retry_delay = ?,
			timeout = ?, enabled = ?, tags = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.Description, r.ScheduleType, r.ScheduleExpression,
		r.ScheduleInterval, r.ScheduleExecuteAt, r.ActionType, r.ActionConfig,
		r.Timezone, r.RetryCount, r.RetryDelay, r.Timeout, boolToInt(r.Enabled), r.Tags,
		r.UpdatedAt, r.ID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE scheduled_tasks SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *sqliteStore) ListTasks(ctx context.Context) ([]TaskRow, error) {
	return s.queryTasks(ctx, `
		SELECT id, name, description, schedule_type, schedule_expression,
			schedule_interval, schedule_execute_at, action_type, action_config,
			timezone, retry_count, retry_delay, timeout, enabled, tags,
			created_at, updated_at, created_by
		FROM scheduled_tasks ORDER BY created_at`)
}

func (s *sqliteStore) ListEnabledTasks(ctx context.Context) ([]TaskRow, error) {
	return s.queryTasks(ctx, `
		SELECT id, name, description, schedule_type, schedule_expression,
			schedule_interval, schedule_execute_at, action_type, action_config,
			timezone, retry_count, retry_delay, timeout, enabled, tags,
			created_at, updated_at, created_by
		FROM scheduled_tasks WHERE enabled = 1 ORDER BY created_at`)
}

func (s *sqliteStore) queryTasks(ctx context.Context, query string, args ...any) ([]TaskRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		r, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(s rowScanner) (TaskRow, error) {
	var r TaskRow
	var enabled int
	err := s.Scan(
		&r.ID, &r.Name, &r.Description, &r.ScheduleType, &r.ScheduleExpression,
		&r.ScheduleInterval, &r.ScheduleExecuteAt, &r.ActionType, &r.ActionConfig,
		&r.Timezone, &r.RetryCount, &r.RetryDelay, &r.Timeout, &enabled, &r.Tags,
		&r.CreatedAt, &r.UpdatedAt, &r.CreatedBy,
	)
	r.Enabled = enabled != 0
	return r, err
}

func (s *sqliteStore) CreateHistory(ctx context.Context, r HistoryRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_history (execution_id, task_id, start_time, end_time, status, result, error)
		VALUES (?,?,?,?,?,?,?)`,
		r.ExecutionID, r.TaskID, r.StartTime, r.EndTime, r.Status, r.Result, r.Error,
	)
	return err
}

func (s *sqliteStore) UpdateHistory(ctx context.Context, r HistoryRow) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE execution_history SET end_time = ?, status = ?, result = ?, error = ?
		WHERE execution_id = ?`,
		r.EndTime, r.Status, r.Result, r.Error, r.ExecutionID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *sqliteStore) ListHistory(ctx context.Context, taskID string, limit int) ([]HistoryRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, task_id, start_time, end_time, status, result, error
		FROM execution_history WHERE task_id = ? ORDER BY start_time DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		if err := rows.Scan(&r.ExecutionID, &r.TaskID, &r.StartTime, &r.EndTime, &r.Status, &r.Result, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SweepDanglingRunning(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE execution_history SET status = 'aborted' WHERE status = 'running'`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
