// Package executor runs a validated dag.Graph against a tool Registry: it
// level-orders dispatch, bounds concurrency, substitutes inter-task
// references, and aggregates an ExecutionResult, per spec.md §4.2.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowcore/taskrunner/internal/backoff"
	"github.com/flowcore/taskrunner/internal/dag"
	"github.com/flowcore/taskrunner/internal/logger"
)

// FailureMode governs what happens to later levels when a level contains a
// failed task.
type FailureMode string

const (
	// Continue runs every level regardless of upstream failures (default).
	Continue FailureMode = "continue"
	// Stop skips every task in strictly later levels once a level fails.
	Stop FailureMode = "stop"
)

// Config bounds a single Execute call.
type Config struct {
	MaxConcurrent  int
	DefaultTimeout time.Duration
	FailureMode    FailureMode
}

// DefaultConfig matches spec.md §4.2's defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 5, DefaultTimeout: 300 * time.Second, FailureMode: Continue}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 300 * time.Second
	}
	if c.FailureMode == "" {
		c.FailureMode = Continue
	}
	return c
}

// Execute runs graph level by level, returning the aggregated ExecutionResult.
func Execute(ctx context.Context, graph *dag.Graph, registry *Registry, cfg Config, log logger.Logger) *dag.ExecutionResult {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Default
	}

	start := time.Now()
	results := make(map[string]dag.TaskResult, len(graph.Nodes))
	stopped := false

	for levelIdx, ids := range graph.Level {
		if stopped {
			for _, id := range ids {
				results[id] = skippedResult(id)
			}
			continue
		}

		levelResults := runLevel(ctx, graph, registry, cfg, log, ids, results)
		for id, r := range levelResults {
			results[id] = r
		}

		if cfg.FailureMode == Stop {
			for _, id := range ids {
				if results[id].Status == dag.StatusFailed {
					stopped = true
					break
				}
			}
		}
		log.Debug("dag level complete", "level", levelIdx, "tasks", len(ids))
	}

	end := time.Now()
	return aggregate(graph, results, start, end)
}

// runLevel starts up to cfg.MaxConcurrent tasks at a time, awaiting the
// first completion before starting the next, and returns only once every
// task in ids has reached a terminal state.
func runLevel(ctx context.Context, graph *dag.Graph, registry *Registry, cfg Config, log logger.Logger, ids []string, priorResults map[string]dag.TaskResult) map[string]dag.TaskResult {
	out := make(map[string]dag.TaskResult, len(ids))
	if len(ids) == 0 {
		return out
	}

	sem := make(chan struct{}, cfg.MaxConcurrent)
	resultsCh := make(chan dag.TaskResult, len(ids))

	for _, id := range ids {
		node := graph.Nodes[id]
		sem <- struct{}{}
		go func(node *dag.Node) {
			defer func() { <-sem }()
			resultsCh <- runTask(ctx, node.Task, registry, cfg, log, priorResults)
		}(node)
	}

	for range ids {
		r := <-resultsCh
		out[r.TaskID] = r
	}
	return out
}

func runTask(ctx context.Context, task dag.Task, registry *Registry, cfg Config, log logger.Logger, priorResults map[string]dag.TaskResult) dag.TaskResult {
	start := time.Now()

	tool, ok := registry.Get(task.Tool)
	if !ok {
		return errorResult(task.ID, start, "TOOL_NOT_FOUND", fmt.Sprintf("no tool registered for %q", task.Tool), false)
	}

	params := dag.Resolve(task.Params, priorResults)

	timeout := cfg.DefaultTimeout
	if task.TimeoutMS > 0 {
		timeout = time.Duration(task.TimeoutMS) * time.Millisecond
	}

	var (
		value any
		err   error
	)
	if task.RetryPolicy != nil {
		value, err = invokeWithRetry(ctx, tool, params, timeout, *task.RetryPolicy)
	} else {
		value, err = invokeWithTimeout(ctx, tool, params, timeout)
	}

	if err != nil {
		if err == context.DeadlineExceeded {
			return errorResult(task.ID, start, "TIMEOUT", "task exceeded its timeout", true)
		}
		log.Warn("task failed", "task", task.ID, "error", err)
		return errorResult(task.ID, start, "TOOL_ERROR", err.Error(), false)
	}

	end := time.Now()
	return dag.TaskResult{
		TaskID:   task.ID,
		Status:   dag.StatusSuccess,
		Result:   value,
		Start:    start,
		End:      end,
		Duration: end.Sub(start).Milliseconds(),
	}
}

func invokeWithTimeout(ctx context.Context, tool ToolFunc, params map[string]any, timeout time.Duration) (any, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := tool(tctx, params)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-tctx.Done():
		return nil, context.DeadlineExceeded
	}
}

func invokeWithRetry(ctx context.Context, tool ToolFunc, params map[string]any, timeout time.Duration, policy dag.RetryPolicy) (any, error) {
	initialDelay := time.Duration(policy.InitialDelayMS) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	// MaxAttempts counts the first call; the retrier counts only retries and
	// treats 0 as unlimited, so a policy of one attempt or fewer runs once.
	retries := policy.MaxAttempts - 1
	if retries < 1 {
		return invokeWithTimeout(ctx, tool, params, timeout)
	}
	retrier := backoff.NewRetrier(backoff.PolicyForKind(policy.BackoffKind, initialDelay, retries))

	var lastErr error
	for {
		v, err := invokeWithTimeout(ctx, tool, params, timeout)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if waitErr := retrier.Next(ctx, err); waitErr != nil {
			return nil, lastErr
		}
	}
}

func errorResult(taskID string, start time.Time, code, message string, retryable bool) dag.TaskResult {
	end := time.Now()
	return dag.TaskResult{
		TaskID: taskID,
		Status: dag.StatusFailed,
		Err:    &dag.TaskError{Code: code, Message: message, Retryable: retryable},
		Start:  start,
		End:    end,
		// a failing synchronous lookup (e.g. TOOL_NOT_FOUND) can have end==start
		Duration: end.Sub(start).Milliseconds(),
	}
}

func skippedResult(taskID string) dag.TaskResult {
	now := time.Now()
	return dag.TaskResult{TaskID: taskID, Status: dag.StatusSkipped, Start: now, End: now, Duration: 0}
}

func aggregate(graph *dag.Graph, results map[string]dag.TaskResult, start, end time.Time) *dag.ExecutionResult {
	summary := dag.Summary{Total: len(graph.Nodes)}
	for _, r := range results {
		switch r.Status {
		case dag.StatusSuccess:
			summary.Succeeded++
		case dag.StatusFailed:
			summary.Failed++
		case dag.StatusSkipped:
			summary.Skipped++
		}
	}

	status := dag.OverallSuccess
	switch {
	case summary.Failed == 0:
		status = dag.OverallSuccess
	case summary.Succeeded == 0:
		status = dag.OverallFailure
	default:
		status = dag.OverallPartial
	}

	return &dag.ExecutionResult{
		ExecutionID: uuid.NewString(),
		Status:      status,
		StartTime:   start,
		EndTime:     end,
		DurationMS:  end.Sub(start).Milliseconds(),
		Tasks:       results,
		Summary:     summary,
		DAG:         graph.Description(),
	}
}
