package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowcore/taskrunner/internal/scheduler/store"
)

func taskToRow(t Task) (store.TaskRow, error) {
	configJSON, err := json.Marshal(t.Action.Config)
	if err != nil {
		return store.TaskRow{}, fmt.Errorf("scheduler: marshal action config: %w", err)
	}
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return store.TaskRow{}, fmt.Errorf("scheduler: marshal tags: %w", err)
	}

	var executeAt string
	if t.Schedule.Kind == ScheduleOnce && !t.Schedule.ExecuteAt.IsZero() {
		executeAt = t.Schedule.ExecuteAt.UTC().Format(time.RFC3339)
	}

	return store.TaskRow{
		ID:                 t.ID,
		Name:               t.Name,
		Description:        t.Description,
		ScheduleType:       string(t.Schedule.Kind),
		ScheduleExpression: t.Schedule.CronExpr,
		ScheduleInterval:   t.Schedule.IntervalMS,
		ScheduleExecuteAt:  executeAt,
		ActionType:         string(t.Action.Kind),
		ActionConfig:       string(configJSON),
		Timezone:           t.Timezone,
		RetryCount:         t.RetryCount,
		RetryDelay:         t.RetryDelay.Milliseconds(),
		Timeout:            t.Timeout.Milliseconds(),
		Enabled:            t.Enabled,
		Tags:               string(tagsJSON),
		CreatedAt:          t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:          t.UpdatedAt.UTC().Format(time.RFC3339Nano),
		CreatedBy:          t.CreatedBy,
	}, nil
}

func rowToTask(r store.TaskRow) (Task, error) {
	var config map[string]any
	if r.ActionConfig != "" {
		if err := json.Unmarshal([]byte(r.ActionConfig), &config); err != nil {
			return Task{}, fmt.Errorf("scheduler: unmarshal action config: %w", err)
		}
	}
	var tags []string
	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
			return Task{}, fmt.Errorf("scheduler: unmarshal tags: %w", err)
		}
	}

	sched := Schedule{
		Kind:       ScheduleKind(r.ScheduleType),
		CronExpr:   r.ScheduleExpression,
		IntervalMS: r.ScheduleInterval,
	}
	if r.ScheduleExecuteAt != "" {
		t, err := time.Parse(time.RFC3339, r.ScheduleExecuteAt)
		if err != nil {
			return Task{}, fmt.Errorf("scheduler: parse schedule_execute_at: %w", err)
		}
		sched.ExecuteAt = t
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)

	return Task{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Schedule:    sched,
		Action:      Action{Kind: ActionKind(r.ActionType), Config: config},
		Timezone:    r.Timezone,
		RetryCount:  r.RetryCount,
		RetryDelay:  time.Duration(r.RetryDelay) * time.Millisecond,
		Timeout:     time.Duration(r.Timeout) * time.Millisecond,
		Enabled:     r.Enabled,
		Tags:        tags,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		CreatedBy:   r.CreatedBy,
	}, nil
}

func historyToRow(h HistoryEntry) (store.HistoryRow, error) {
	var resultJSON string
	if h.Result != nil {
		b, err := json.Marshal(h.Result)
		if err != nil {
			return store.HistoryRow{}, fmt.Errorf("scheduler: marshal history result: %w", err)
		}
		resultJSON = string(b)
	}

	var endTime string
	if !h.EndTime.IsZero() {
		endTime = h.EndTime.UTC().Format(time.RFC3339Nano)
	}

	return store.HistoryRow{
		ExecutionID: h.ExecutionID,
		TaskID:      h.TaskID,
		StartTime:   h.StartTime.UTC().Format(time.RFC3339Nano),
		EndTime:     endTime,
		Status:      string(h.Status),
		Result:      resultJSON,
		Error:       h.Error,
	}, nil
}

func rowToHistory(r store.HistoryRow) (HistoryEntry, error) {
	var result map[string]any
	if r.Result != "" {
		if err := json.Unmarshal([]byte(r.Result), &result); err != nil {
			return HistoryEntry{}, fmt.Errorf("scheduler: unmarshal history result: %w", err)
		}
	}

	startTime, _ := time.Parse(time.RFC3339Nano, r.StartTime)
	var endTime time.Time
	if r.EndTime != "" {
		endTime, _ = time.Parse(time.RFC3339Nano, r.EndTime)
	}

	return HistoryEntry{
		ExecutionID: r.ExecutionID,
		TaskID:      r.TaskID,
		StartTime:   startTime,
		EndTime:     endTime,
		Status:      HistoryStatus(r.Status),
		Result:      result,
		Error:       r.Error,
	}, nil
}
