// Package ratelimit implements the token bucket and rate-limit registry
// described in spec.md §4.3: continuous refill, waitAndConsume across an
// endpoint bucket and an API bucket, and header-driven bucket updates.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Bucket is a continuous-refill token bucket. Zero value is not usable; use
// NewBucket.
type Bucket struct {
	mu          sync.Mutex
	capacity    float64
	refillRate  float64 // tokens per second
	tokens      float64
	lastRefill  time.Time
}

// NewBucket returns a Bucket starting full.
func NewBucket(capacity int, refillRate float64) *Bucket {
	return &Bucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

func (b *Bucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// TryConsume refills then, if tokens >= n, decrements and returns true.
func (b *Bucket) TryConsume(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// WaitTime returns how long to wait before n tokens would be available, or
// 0 if already satisfied.
func (b *Bucket) WaitTime(n int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	deficit := float64(n) - b.tokens
	if deficit <= 0 {
		return 0
	}
	ms := math.Ceil(1000 * deficit / b.refillRate)
	return time.Duration(ms) * time.Millisecond
}

// Reconfigure replaces capacity/refillRate, e.g. from header-driven updates,
// keeping accrued tokens up to the new capacity and discarding any excess.
func (b *Bucket) Reconfigure(capacity int, refillRate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	b.capacity = float64(capacity)
	b.refillRate = refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// Tokens returns the current (refilled) token count, for tests/observability.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}
