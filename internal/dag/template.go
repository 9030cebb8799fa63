package dag

import (
	"regexp"
	"strconv"
	"strings"
)

// templatePattern matches ${<id>.result.<dot.path>} anywhere in a string.
var templatePattern = regexp.MustCompile(`\$\{([^.}]+)\.result\.([^}]+)\}`)

// Resolve substitutes every ${<id>.result.<dot.path>} template occurring in
// params with the value found by walking results[id].Result along dot.path.
// Unresolved paths (unknown task, absent field) preserve the literal
// template string unchanged, per spec.md §4.2. Resolve is pure: it returns a
// new map and never mutates params.
func Resolve(params map[string]any, results map[string]TaskResult) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = resolveValue(v, results)
	}
	return out
}

func resolveValue(v any, results map[string]TaskResult) any {
	switch val := v.(type) {
	case string:
		return resolveString(val, results)
	case map[string]any:
		return Resolve(val, results)
	case []any:
		resolved := make([]any, len(val))
		for i, item := range val {
			resolved[i] = resolveValue(item, results)
		}
		return resolved
	default:
		return v
	}
}

func resolveString(s string, results map[string]TaskResult) any {
	// A string consisting of exactly one template substitutes the raw
	// (possibly non-string) value; otherwise it's treated as interpolation:
	// strings, float64 and int numbers, and bools are rendered to their
	// string form, and any other value type renders as an empty string.
	if m := templatePattern.FindStringSubmatch(s); m != nil && m[0] == s {
		resolved, ok := lookup(m[1], m[2], results)
		if !ok {
			return s
		}
		return resolved
	}

	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		m := templatePattern.FindStringSubmatch(match)
		if m == nil {
			return match
		}
		resolved, ok := lookup(m[1], m[2], results)
		if !ok {
			return match
		}
		return toDisplayString(resolved)
	})
}

func lookup(taskID, dotPath string, results map[string]TaskResult) (any, bool) {
	res, ok := results[taskID]
	if !ok {
		return nil, false
	}
	cur := res.Result
	for _, segment := range strings.Split(dotPath, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toDisplayString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
