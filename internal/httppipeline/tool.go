package httppipeline

import (
	"context"
	"fmt"
)

// AsTool adapts Client into a DAG executor.ToolFunc-compatible callable
// (the concrete executor.ToolFunc type lives in internal/dag/executor to
// avoid a dependency cycle; callers register it with Registry.Register).
// params are expected to carry the same keys as Options's JSON shape.
func (c *Client) AsTool(ctx context.Context, params map[string]any) (any, error) {
	opts, err := optionsFromParams(params)
	if err != nil {
		return nil, err
	}
	result := c.Do(ctx, opts)
	if !result.Success {
		return nil, result.AsError()
	}
	return result.Data, nil
}

func optionsFromParams(params map[string]any) (Options, error) {
	opts := Options{Method: "GET"}

	if v, ok := params["method"].(string); ok && v != "" {
		opts.Method = v
	}
	if v, ok := params["url"].(string); ok {
		opts.URL = v
	} else {
		return opts, fmt.Errorf("http tool requires a string \"url\" parameter")
	}
	if v, ok := params["headers"].(map[string]any); ok {
		opts.Headers = toStringMap(v)
	}
	if v, ok := params["params"].(map[string]any); ok {
		opts.Params = toStringMap(v)
	}
	if v, ok := params["data"]; ok {
		opts.Data = v
	}
	if v, ok := params["rateLimitKey"].(string); ok {
		opts.RateLimitKey = v
	}
	if v, ok := params["rateLimitApi"].(string); ok {
		opts.RateLimitAPI = v
	}

	return opts, nil
}

func toStringMap(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
