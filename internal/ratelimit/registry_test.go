package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWaitAndConsumeRateLimits is scenario S4: a bucket allowing 2
// requests/second; the third back-to-back call should wait roughly 500ms.
func TestWaitAndConsumeRateLimits(t *testing.T) {
	r := NewRegistry()
	key := "K"
	b := r.EndpointBucket(key)
	b.Reconfigure(2, 2) // capacity 2, refill 2/sec -> window ~1s for 2 reqs

	start := time.Now()
	require.NoError(t, r.WaitAndConsume(context.Background(), key, ""))
	require.NoError(t, r.WaitAndConsume(context.Background(), key, ""))
	elapsed1 := time.Since(start)
	assert.Less(t, elapsed1, 50*time.Millisecond)

	start3 := time.Now()
	require.NoError(t, r.WaitAndConsume(context.Background(), key, ""))
	elapsed3 := time.Since(start3)
	assert.GreaterOrEqual(t, elapsed3, 400*time.Millisecond)
	assert.LessOrEqual(t, elapsed3, 1000*time.Millisecond)
}

func TestWaitAndConsumeConsultsBothBuckets(t *testing.T) {
	r := NewRegistry()
	ep := r.EndpointBucket("endpoint")
	ep.Reconfigure(1, 1000)
	api := r.APIBucket("api")
	api.Reconfigure(1, 1000)

	require.NoError(t, r.WaitAndConsume(context.Background(), "endpoint", "api"))
	assert.Less(t, ep.Tokens(), float64(1))
	assert.Less(t, api.Tokens(), float64(1))
}

func TestApplyResponseHeadersRateLimit(t *testing.T) {
	r := NewRegistry()
	h := http.Header{}
	now := time.Now().Unix()
	h.Set("X-RateLimit-Limit", "100")
	h.Set("X-RateLimit-Remaining", "50")
	h.Set("X-RateLimit-Reset", "100000000000") // far future: very long window, negligible refill
	_ = now

	r.ApplyResponseHeaders("ep", h)
	b := r.EndpointBucket("ep")
	assert.Equal(t, float64(100), b.Tokens())
}

func TestApplyResponseHeadersRetryAfterOverrides(t *testing.T) {
	r := NewRegistry()
	h := http.Header{}
	h.Set("Retry-After", "2")

	r.ApplyResponseHeaders("ep", h)
	b := r.EndpointBucket("ep")
	assert.Equal(t, float64(1), b.Tokens())
	require.True(t, b.TryConsume(1))
	wait := b.WaitTime(1)
	assert.Greater(t, wait, time.Duration(0))
}

func TestApplyResponseHeadersIgnoresIncomplete(t *testing.T) {
	r := NewRegistry()
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "100")
	// missing Remaining/Reset

	r.ApplyResponseHeaders("ep", h)
	b := r.EndpointBucket("ep")
	assert.Equal(t, float64(DefaultCapacity), b.Tokens())
}

type fakeSharedStore struct {
	calls int
	key   string
}

func (f *fakeSharedStore) SaveLimit(ctx context.Context, key string, capacity int, window time.Duration) error {
	f.calls++
	f.key = key
	return nil
}

func TestApplyResponseHeadersMirrorsToSharedStore(t *testing.T) {
	shared := &fakeSharedStore{}
	r := NewRegistry().WithSharedStore(shared)
	h := http.Header{}
	h.Set("Retry-After", "1")

	r.ApplyResponseHeaders("ep", h)
	assert.Equal(t, 1, shared.calls)
	assert.Equal(t, "ep", shared.key)
}
