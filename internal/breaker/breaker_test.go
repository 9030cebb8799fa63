package breaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryClosedByDefault(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Open("GET /x"))
}

func TestRegistryOpensAtThreshold(t *testing.T) {
	r := NewRegistry()
	ctx := "GET /x"
	for i := 0; i < DefaultThreshold-1; i++ {
		r.RecordFailure(ctx)
		assert.False(t, r.Open(ctx), "should not open before threshold")
	}
	r.RecordFailure(ctx)
	assert.True(t, r.Open(ctx))
}

func TestRegistrySuccessResets(t *testing.T) {
	r := NewRegistry()
	ctx := "GET /x"
	for i := 0; i < DefaultThreshold; i++ {
		r.RecordFailure(ctx)
	}
	assert.True(t, r.Open(ctx))

	r.RecordSuccess(ctx)
	assert.False(t, r.Open(ctx))
	assert.Equal(t, 0, r.Count(ctx))
}

func TestRegistryWithThreshold(t *testing.T) {
	r := NewRegistry().WithThreshold(2)
	ctx := "POST /y"
	r.RecordFailure(ctx)
	assert.False(t, r.Open(ctx))
	r.RecordFailure(ctx)
	assert.True(t, r.Open(ctx))
}

func TestRegistryContextsAreIndependent(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < DefaultThreshold; i++ {
		r.RecordFailure("a")
	}
	assert.True(t, r.Open("a"))
	assert.False(t, r.Open("b"))
}
