package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResolveSubstitution is scenario S3: a consumer task references
// ${p.result.data.nested.value} and observes the raw (non-string) value.
func TestResolveSubstitution(t *testing.T) {
	results := map[string]TaskResult{
		"p": {
			TaskID: "p",
			Status: StatusSuccess,
			Result: map[string]any{
				"data": map[string]any{
					"nested": map[string]any{"value": 42},
				},
			},
		},
	}

	params := map[string]any{"val": "${p.result.data.nested.value}"}
	resolved := Resolve(params, results)
	assert.Equal(t, 42, resolved["val"])
}

func TestResolveUnresolvedPathPreservesLiteral(t *testing.T) {
	results := map[string]TaskResult{}
	params := map[string]any{"val": "${missing.result.foo}"}
	resolved := Resolve(params, results)
	assert.Equal(t, "${missing.result.foo}", resolved["val"])
}

func TestResolveNestedMapsAndSlices(t *testing.T) {
	results := map[string]TaskResult{
		"p": {Result: map[string]any{"x": "hello"}},
	}
	params := map[string]any{
		"nested": map[string]any{"a": "${p.result.x}"},
		"list":   []any{"${p.result.x}", "literal"},
	}
	resolved := Resolve(params, results)
	assert.Equal(t, "hello", resolved["nested"].(map[string]any)["a"])
	assert.Equal(t, []any{"hello", "literal"}, resolved["list"])
}

func TestResolveInterpolatedNonExactMatch(t *testing.T) {
	results := map[string]TaskResult{
		"p": {Result: map[string]any{"count": float64(3)}},
	}
	params := map[string]any{"msg": "total is ${p.result.count} items"}
	resolved := Resolve(params, results)
	assert.Equal(t, "total is 3 items", resolved["msg"])
}

func TestResolveNilParamsReturnsNil(t *testing.T) {
	assert.Nil(t, Resolve(nil, nil))
}
