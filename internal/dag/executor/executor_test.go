package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/taskrunner/internal/dag"
	"github.com/flowcore/taskrunner/internal/test"
)

func okTool(result any) ToolFunc {
	return func(ctx context.Context, params map[string]any) (any, error) { return result, nil }
}

// TestExecuteDiamondSucceeds is scenario S1 end to end through the executor.
func TestExecuteDiamondSucceeds(t *testing.T) {
	reg := NewRegistry()
	reg.Register("noop", okTool(map[string]any{"ok": true}))

	tasks := []dag.Task{
		{ID: "A", Tool: "noop"},
		{ID: "B", Tool: "noop", DependsOn: []string{"A"}},
		{ID: "C", Tool: "noop", DependsOn: []string{"A"}},
		{ID: "D", Tool: "noop", DependsOn: []string{"B", "C"}},
	}
	g, err := dag.Build(tasks)
	require.NoError(t, err)

	result := Execute(context.Background(), g, reg, DefaultConfig(), test.NewLogger())
	assert.Equal(t, dag.OverallSuccess, result.Status)
	assert.Equal(t, 4, result.Summary.Succeeded)
	assert.Equal(t, [][]string{{"A"}, {"B", "C"}, {"D"}}, result.DAG.Levels)

	// invariant 1 (spec.md §8): output ids == input ids
	gotIDs := map[string]bool{}
	for id := range result.Tasks {
		gotIDs[id] = true
	}
	assert.Equal(t, map[string]bool{"A": true, "B": true, "C": true, "D": true}, gotIDs)

	// invariant 3: end >= start, duration matches
	for _, r := range result.Tasks {
		assert.False(t, r.End.Before(r.Start))
		assert.Equal(t, r.End.Sub(r.Start).Milliseconds(), r.Duration)
	}
}

// TestExecuteSubstitution is scenario S3 through the executor: consumer
// observes the raw value substituted from the producer's result.
func TestExecuteSubstitution(t *testing.T) {
	reg := NewRegistry()
	reg.Register("producer", okTool(map[string]any{"data": map[string]any{"nested": map[string]any{"value": 42}}}))

	var observed any
	reg.Register("consumer", func(ctx context.Context, params map[string]any) (any, error) {
		observed = params["val"]
		return nil, nil
	})

	tasks := []dag.Task{
		{ID: "p", Tool: "producer"},
		{ID: "c", Tool: "consumer", Params: map[string]any{"val": "${p.result.data.nested.value}"}, DependsOn: []string{"p"}},
	}
	g, err := dag.Build(tasks)
	require.NoError(t, err)

	result := Execute(context.Background(), g, reg, DefaultConfig(), test.NewLogger())
	require.Equal(t, dag.OverallSuccess, result.Status)
	assert.Equal(t, 42, observed)
}

func TestExecuteToolNotFound(t *testing.T) {
	reg := NewRegistry()
	tasks := []dag.Task{{ID: "A", Tool: "missing"}}
	g, err := dag.Build(tasks)
	require.NoError(t, err)

	result := Execute(context.Background(), g, reg, DefaultConfig(), test.NewLogger())
	assert.Equal(t, dag.OverallFailure, result.Status)
	assert.Equal(t, "TOOL_NOT_FOUND", result.Tasks["A"].Err.Code)
}

// TestExecuteFailureModeStopSkipsLaterLevels is scenario for
// failureMode=stop: the set of skipped ids equals every task in levels
// strictly later than the first level containing a failure (spec.md §8.6).
func TestExecuteFailureModeStopSkipsLaterLevels(t *testing.T) {
	reg := NewRegistry()
	reg.Register("ok", okTool("done"))
	reg.Register("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	tasks := []dag.Task{
		{ID: "A", Tool: "boom"},
		{ID: "B", Tool: "ok", DependsOn: []string{"A"}},
		{ID: "C", Tool: "ok", DependsOn: []string{"B"}},
	}
	g, err := dag.Build(tasks)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.FailureMode = Stop
	result := Execute(context.Background(), g, reg, cfg, test.NewLogger())

	assert.Equal(t, dag.StatusFailed, result.Tasks["A"].Status)
	assert.Equal(t, dag.StatusSkipped, result.Tasks["B"].Status)
	assert.Equal(t, dag.StatusSkipped, result.Tasks["C"].Status)
	assert.Equal(t, int64(0), result.Tasks["B"].Duration)
}

func TestExecuteFailureModeContinueRunsLaterLevels(t *testing.T) {
	reg := NewRegistry()
	reg.Register("ok", okTool("done"))
	reg.Register("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	tasks := []dag.Task{
		{ID: "A", Tool: "boom"},
		{ID: "B", Tool: "ok", DependsOn: []string{"A"}},
	}
	g, err := dag.Build(tasks)
	require.NoError(t, err)

	result := Execute(context.Background(), g, reg, DefaultConfig(), test.NewLogger())
	assert.Equal(t, dag.StatusFailed, result.Tasks["A"].Status)
	assert.Equal(t, dag.StatusSuccess, result.Tasks["B"].Status)
	assert.Equal(t, dag.OverallPartial, result.Status)
}

func TestExecuteTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.Register("slow", func(ctx context.Context, params map[string]any) (any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	tasks := []dag.Task{{ID: "A", Tool: "slow", TimeoutMS: 20}}
	g, err := dag.Build(tasks)
	require.NoError(t, err)

	result := Execute(context.Background(), g, reg, DefaultConfig(), test.NewLogger())
	assert.Equal(t, dag.StatusFailed, result.Tasks["A"].Status)
	assert.Equal(t, "TIMEOUT", result.Tasks["A"].Err.Code)
	assert.True(t, result.Tasks["A"].Err.Retryable)
}

func TestExecuteRetryUntilSuccess(t *testing.T) {
	reg := NewRegistry()
	attempts := 0
	reg.Register("flaky", func(ctx context.Context, params map[string]any) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})

	tasks := []dag.Task{{
		ID: "A", Tool: "flaky",
		RetryPolicy: &dag.RetryPolicy{MaxAttempts: 5, BackoffKind: "constant", InitialDelayMS: 5},
	}}
	g, err := dag.Build(tasks)
	require.NoError(t, err)

	result := Execute(context.Background(), g, reg, DefaultConfig(), test.NewLogger())
	assert.Equal(t, dag.StatusSuccess, result.Tasks["A"].Status)
	assert.Equal(t, 3, attempts)
}
