package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/flowcore/taskrunner/internal/httppipeline"
	"github.com/flowcore/taskrunner/internal/logger"
	"github.com/flowcore/taskrunner/internal/scheduler/store"
)

// Executor performs the per-fire work described in spec.md §4.8: write a
// pending history row, race the action against its timeout, retry on
// failure (sharing that same history row across attempts — see DESIGN.md's
// resolution of the spec's retry/history ambiguity), then mark the row
// terminal.
type Executor struct {
	store store.Store
	http  *httppipeline.Client
	minio *minio.Client // nil: the "file" action fails with a "no object store configured" error
	log   logger.Logger
}

// NewExecutor builds an Executor. minioClient may be nil if the "file"
// action type will never be used.
func NewExecutor(st store.Store, httpClient *httppipeline.Client, minioClient *minio.Client, log logger.Logger) *Executor {
	if log == nil {
		log = logger.Default
	}
	return &Executor{store: st, http: httpClient, minio: minioClient, log: log}
}

// Execute fires task once: create the history row, run the action
// (retrying per task.RetryCount), then mark the row terminal. Errors from
// the action never escape Execute — they are written to history, per
// spec.md §7's "scheduler-action errors never crash the trigger loop".
func (e *Executor) Execute(ctx context.Context, task Task) {
	entry := HistoryEntry{
		ExecutionID: uuid.NewString(),
		TaskID:      task.ID,
		StartTime:   time.Now(),
		Status:      HistoryPending,
	}
	row, err := historyToRow(entry)
	if err != nil {
		e.log.Errorf("scheduler: encode history row for task %s: %v", task.ID, err)
		return
	}
	if err := e.store.CreateHistory(ctx, row); err != nil {
		e.log.Errorf("scheduler: write pending history for task %s: %v", task.ID, err)
		return
	}

	result, actionErr := e.runWithRetries(ctx, task, task.RetryCount)

	entry.EndTime = time.Now()
	switch {
	case errors.Is(actionErr, context.DeadlineExceeded):
		entry.Status = HistoryTimeout
		entry.Error = actionErr.Error()
	case actionErr != nil:
		entry.Status = HistoryFailed
		entry.Error = actionErr.Error()
	default:
		entry.Status = HistorySuccess
		entry.Result = result
	}

	finalRow, err := historyToRow(entry)
	if err != nil {
		e.log.Errorf("scheduler: encode final history row for task %s: %v", task.ID, err)
		return
	}
	if err := e.store.UpdateHistory(ctx, finalRow); err != nil {
		e.log.Errorf("scheduler: write final history for task %s: %v", task.ID, err)
	}
}

// runWithRetries races one attempt of task's action against its configured
// timeout; on a non-timeout error with retries remaining, it sleeps
// RetryDelay and recurses with a decremented count.
func (e *Executor) runWithRetries(ctx context.Context, task Task, retriesLeft int) (map[string]any, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	result, err := e.dispatch(attemptCtx, task)
	if err == nil {
		return result, nil
	}

	if attemptCtx.Err() == context.DeadlineExceeded {
		return nil, context.DeadlineExceeded
	}

	if retriesLeft > 0 {
		timer := time.NewTimer(task.RetryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		return e.runWithRetries(ctx, task, retriesLeft-1)
	}

	return nil, err
}

// dispatch runs one action invocation per its kind.
func (e *Executor) dispatch(ctx context.Context, task Task) (map[string]any, error) {
	switch task.Action.Kind {
	case ActionHTTP:
		return e.runHTTP(ctx, task.Action.Config, "")
	case ActionWebhook:
		return e.runHTTP(ctx, task.Action.Config, "POST")
	case ActionFile:
		return e.runFile(ctx, task.Action.Config)
	case ActionDatabase:
		return e.runDatabase(ctx, task.Action.Config)
	case ActionEmail:
		// Placeholder per spec.md §4.8 until an email engine is wired; no
		// pack example repo carries a mail-sending dependency.
		return map[string]any{"status": "not_implemented"}, nil
	default:
		return nil, fmt.Errorf("scheduler: unknown action kind %q", task.Action.Kind)
	}
}
