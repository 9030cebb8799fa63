package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketStartsFull(t *testing.T) {
	b := NewBucket(10, 1)
	assert.Equal(t, float64(10), b.Tokens())
}

func TestBucketTryConsume(t *testing.T) {
	b := NewBucket(2, 1)
	assert.True(t, b.TryConsume(2))
	assert.False(t, b.TryConsume(1))
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	b := NewBucket(5, 1000) // fast refill
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, b.Tokens(), float64(5))
}

func TestBucketRefillsOverTime(t *testing.T) {
	b := NewBucket(10, 100) // 100 tokens/sec
	b.TryConsume(10)
	assert.Equal(t, float64(0), b.Tokens())

	time.Sleep(50 * time.Millisecond)
	tokens := b.Tokens()
	assert.Greater(t, tokens, float64(0))
	assert.LessOrEqual(t, tokens, float64(10))
}

func TestBucketWaitTimeZeroWhenSatisfied(t *testing.T) {
	b := NewBucket(5, 1)
	assert.Equal(t, time.Duration(0), b.WaitTime(3))
}

func TestBucketWaitTimePositiveWhenDeficient(t *testing.T) {
	b := NewBucket(1, 1)
	b.TryConsume(1)
	wait := b.WaitTime(1)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 1100*time.Millisecond)
}

func TestBucketReconfigureClampsTokens(t *testing.T) {
	b := NewBucket(10, 1)
	b.Reconfigure(3, 1)
	assert.Equal(t, float64(3), b.Tokens())
}
