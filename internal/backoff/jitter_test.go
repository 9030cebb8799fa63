package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoJitter(t *testing.T) {
	f := NewJitterFunc(NoJitter)
	assert.Equal(t, 100*time.Millisecond, f(100*time.Millisecond))
}

func TestFullJitterBounded(t *testing.T) {
	f := NewJitterFunc(FullJitter)
	for i := 0; i < 50; i++ {
		got := f(100 * time.Millisecond)
		assert.GreaterOrEqual(t, got, time.Duration(0))
		assert.LessOrEqual(t, got, 100*time.Millisecond)
	}
}

func TestJitterBounded(t *testing.T) {
	f := NewJitterFunc(Jitter)
	for i := 0; i < 50; i++ {
		got := f(100 * time.Millisecond)
		assert.GreaterOrEqual(t, got, 50*time.Millisecond)
		assert.LessOrEqual(t, got, 150*time.Millisecond)
	}
}

func TestUniformJitterBounded(t *testing.T) {
	f := UniformJitter(0.2)
	for i := 0; i < 50; i++ {
		got := f(100 * time.Millisecond)
		assert.GreaterOrEqual(t, got, 100*time.Millisecond)
		assert.LessOrEqual(t, got, 120*time.Millisecond)
	}
}

func TestUniformJitterZeroFactor(t *testing.T) {
	f := UniformJitter(0)
	assert.Equal(t, 100*time.Millisecond, f(100*time.Millisecond))
}
