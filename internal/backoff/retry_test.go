package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffPolicyCapsAtMaxInterval(t *testing.T) {
	p := NewExponentialBackoffPolicy(10 * time.Millisecond)
	p.MaxInterval = 30 * time.Millisecond

	i0, err := p.ComputeNextInterval(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, i0)

	i1, err := p.ComputeNextInterval(1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, i1)

	i2, err := p.ComputeNextInterval(2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Millisecond, i2) // capped, would otherwise be 40ms
}

func TestExponentialBackoffPolicyExhausted(t *testing.T) {
	p := NewExponentialBackoffPolicy(time.Millisecond)
	p.MaxRetries = 2
	_, err := p.ComputeNextInterval(2, 0, nil)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestConstantBackoffPolicy(t *testing.T) {
	p := NewConstantBackoffPolicy(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		iv, err := p.ComputeNextInterval(i, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, 50*time.Millisecond, iv)
	}
}

func TestLinearBackoffPolicy(t *testing.T) {
	p := NewLinearBackoffPolicy(10*time.Millisecond, 5*time.Millisecond)
	p.MaxInterval = time.Second

	i0, _ := p.ComputeNextInterval(0, 0, nil)
	i1, _ := p.ComputeNextInterval(1, 0, nil)
	i2, _ := p.ComputeNextInterval(2, 0, nil)
	assert.Equal(t, 10*time.Millisecond, i0)
	assert.Equal(t, 15*time.Millisecond, i1)
	assert.Equal(t, 20*time.Millisecond, i2)
}

// TestRetrierUntilSuccess is scenario S5: fails twice then succeeds with
// maxRetries=3 and a constant 10ms interval; final attempts=3 after two
// 10ms waits, so totalDelay>=20ms. spec.md's
// scenario is at the HTTP-pipeline layer, but the same retrier drives the
// DAG executor's per-task retry, so we exercise the underlying primitive here.
func TestRetrierUntilSuccess(t *testing.T) {
	policy := NewConstantBackoffPolicy(10 * time.Millisecond)
	policy.MaxRetries = 3
	retrier := NewRetrier(policy)

	failures := 0
	attempts := 0
	var totalDelay time.Duration
	for {
		attempts++
		if failures < 2 {
			failures++
			start := time.Now()
			err := retrier.Next(context.Background(), errors.New("fail"))
			totalDelay += time.Since(start)
			require.NoError(t, err)
			continue
		}
		break
	}
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, totalDelay, 20*time.Millisecond)
}

func TestRetrierReset(t *testing.T) {
	policy := NewConstantBackoffPolicy(time.Millisecond)
	policy.MaxRetries = 1
	retrier := NewRetrier(policy)

	require.NoError(t, retrier.Next(context.Background(), errors.New("x")))
	assert.ErrorIs(t, retrier.Next(context.Background(), errors.New("x")), ErrRetriesExhausted)

	retrier.Reset()
	require.NoError(t, retrier.Next(context.Background(), errors.New("x")))
}

func TestRetrierContextCanceled(t *testing.T) {
	policy := NewConstantBackoffPolicy(time.Hour)
	retrier := NewRetrier(policy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retrier.Next(ctx, errors.New("x"))
	assert.ErrorIs(t, err, ErrOperationCanceled)
}

func TestPolicyForKind(t *testing.T) {
	assert.IsType(t, &ConstantBackoffPolicy{}, PolicyForKind("constant", time.Second, 3))
	assert.IsType(t, &LinearBackoffPolicy{}, PolicyForKind("linear", time.Second, 3))
	assert.IsType(t, &ExponentialBackoffPolicy{}, PolicyForKind("exponential", time.Second, 3))
	assert.IsType(t, &ExponentialBackoffPolicy{}, PolicyForKind("unknown", time.Second, 3))
}
