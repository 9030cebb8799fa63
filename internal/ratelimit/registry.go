package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity and DefaultRefillRate seed a bucket the first time a key
// is seen, before any header-driven update has arrived.
const (
	DefaultCapacity   = 60
	DefaultRefillRate = 1.0 // tokens/sec
)

// Registry holds the endpoint-key and api-key bucket maps (spec.md §4.3).
type Registry struct {
	mu        sync.Mutex
	endpoints map[string]*Bucket
	apis      map[string]*Bucket

	// shared, if set, receives a copy of each header-driven bucket
	// configuration (e.g. in Redis). The registry never reads it back.
	shared SharedStore
}

// SharedStore receives bucket configuration (not live token counts) for
// storage outside the process. It is write-only: no code in this package
// loads limits from it, so buckets are always created and updated from
// this process's own responses. A nil SharedStore means nothing is written.
type SharedStore interface {
	// SaveLimit persists the capacity/window learned from response headers
	// for key.
	SaveLimit(ctx context.Context, key string, capacity int, window time.Duration) error
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: map[string]*Bucket{}, apis: map[string]*Bucket{}}
}

// WithSharedStore attaches a SharedStore for header-driven updates.
func (r *Registry) WithSharedStore(s SharedStore) *Registry {
	r.shared = s
	return r
}

func (r *Registry) bucketFor(m map[string]*Bucket, key string) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := m[key]
	if !ok {
		b = NewBucket(DefaultCapacity, DefaultRefillRate)
		m[key] = b
	}
	return b
}

// EndpointBucket returns (creating if needed) the bucket for an endpoint key.
func (r *Registry) EndpointBucket(key string) *Bucket { return r.bucketFor(r.endpoints, key) }

// APIBucket returns (creating if needed) the bucket for an API key.
func (r *Registry) APIBucket(key string) *Bucket { return r.bucketFor(r.apis, key) }

// WaitAndConsume computes the max wait time across the applicable endpoint
// and (optional) API buckets, sleeps that long, then consumes one token
// from each. Waiting before consuming avoids reserving and abandoning
// tokens, per spec.md §4.3.
func (r *Registry) WaitAndConsume(ctx context.Context, endpointKey string, apiKey string) error {
	var buckets []*Bucket
	var wait time.Duration

	if endpointKey != "" {
		b := r.EndpointBucket(endpointKey)
		buckets = append(buckets, b)
		if w := b.WaitTime(1); w > wait {
			wait = w
		}
	}
	if apiKey != "" {
		b := r.APIBucket(apiKey)
		buckets = append(buckets, b)
		if w := b.WaitTime(1); w > wait {
			wait = w
		}
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, b := range buckets {
		b.TryConsume(1)
	}
	return nil
}

// ApplyResponseHeaders inspects a response's rate-limit headers
// (case-insensitive) and creates/updates the endpoint bucket for endpointKey
// accordingly, per spec.md §4.3.
func (r *Registry) ApplyResponseHeaders(endpointKey string, headers http.Header) {
	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			r.setLimit(endpointKey, 1, time.Duration(secs)*time.Second)
			return
		}
	}

	limit := headers.Get("X-RateLimit-Limit")
	remaining := headers.Get("X-RateLimit-Remaining")
	reset := headers.Get("X-RateLimit-Reset")
	if limit == "" || remaining == "" || reset == "" {
		return
	}

	limitN, err1 := strconv.Atoi(limit)
	resetN, err2 := strconv.ParseInt(reset, 10, 64)
	if err1 != nil || err2 != nil || limitN <= 0 {
		return
	}

	windowSecs := resetN - time.Now().Unix()
	if windowSecs < 1 {
		windowSecs = 1
	}
	r.setLimit(endpointKey, limitN, time.Duration(windowSecs)*time.Second)
}

func (r *Registry) setLimit(endpointKey string, capacity int, window time.Duration) {
	refillRate := float64(capacity) / window.Seconds()
	r.mu.Lock()
	b, ok := r.endpoints[endpointKey]
	if !ok {
		r.endpoints[endpointKey] = NewBucket(capacity, refillRate)
	}
	r.mu.Unlock()
	if ok {
		b.Reconfigure(capacity, refillRate)
	}

	if r.shared != nil {
		_ = r.shared.SaveLimit(context.Background(), endpointKey, capacity, window)
	}
}
