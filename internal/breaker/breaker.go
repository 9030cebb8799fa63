// Package breaker implements the per-context circuit breaker of spec.md
// §4.4: a failure counter that short-circuits once a threshold is reached,
// with no half-open state — the first request after reset is simply the
// next attempt.
package breaker

import "sync"

// DefaultThreshold is the default consecutive-failure threshold.
const DefaultThreshold = 5

// Registry tracks one consecutive-failure counter per opaque context key
// (conventionally "<METHOD> <url>").
type Registry struct {
	mu        sync.Mutex
	failures  map[string]int
	threshold int
}

// NewRegistry returns a Registry using DefaultThreshold.
func NewRegistry() *Registry {
	return &Registry{failures: map[string]int{}, threshold: DefaultThreshold}
}

// WithThreshold overrides the default threshold.
func (r *Registry) WithThreshold(n int) *Registry {
	r.threshold = n
	return r
}

// Open reports whether ctx's failure count has reached the threshold.
func (r *Registry) Open(ctx string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[ctx] >= r.threshold
}

// RecordSuccess resets ctx's failure count to zero.
func (r *Registry) RecordSuccess(ctx string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[ctx] = 0
}

// RecordFailure increments ctx's failure count by one and returns the new count.
func (r *Registry) RecordFailure(ctx string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[ctx]++
	return r.failures[ctx]
}

// Count returns ctx's current failure count, for observability/tests.
func (r *Registry) Count(ctx string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[ctx]
}
