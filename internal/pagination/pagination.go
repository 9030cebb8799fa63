// Package pagination implements the pagination driver of spec.md §4.6:
// detect the pagination pattern from the first response, then drive
// subsequent requests pattern-specifically until a termination condition.
package pagination

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Pattern is the detected (or forced) pagination strategy.
type Pattern string

const (
	LinkHeader  Pattern = "LINK_HEADER"
	Cursor      Pattern = "CURSOR"
	PageNumber  Pattern = "PAGE_NUMBER"
	OffsetLimit Pattern = "OFFSET_LIMIT"
	None        Pattern = "NONE"
)

// Config customizes a paginated drive.
type Config struct {
	ForcePattern Pattern
	DataPath     string // explicit dot-path JSON extraction override
	MaxPages     int
}

// DefaultMaxPages is spec.md §4.6's default page cap.
const DefaultMaxPages = 10

// Page is one fetched response, already parsed by internal/parser.
type Page struct {
	Body    any
	Headers http.Header
}

// Result is the aggregated outcome of driving pagination to completion.
type Result struct {
	Items   []any   `json:"items"`
	Pages   int     `json:"pages"`
	Pattern Pattern `json:"pattern"`
	Dropped bool    `json:"dropped,omitempty"` // true if MaxPages was hit before natural termination
}

// FetchFunc performs one HTTP round trip for the given URL/query params and
// returns the parsed page.
type FetchFunc func(ctx context.Context, url string, params map[string]string) (*Page, error)

// Detect resolves the pagination pattern from the first page, honoring a
// forced override first.
func Detect(forced Pattern, first Page) Pattern {
	if forced != "" {
		return forced
	}

	if link := first.Headers.Get("Link"); link != "" && strings.Contains(link, `rel="next"`) {
		return LinkHeader
	}

	body, _ := first.Body.(map[string]any)
	if body != nil {
		if hasAny(body, "pagination.next_cursor", "next_cursor", "cursor", "nextPageToken", "next_page_token") {
			return Cursor
		}
		if (hasKey(body, "page") && hasKey(body, "total_pages")) || hasKey(body, "current_page") || hasKey(body, "pageNumber") {
			return PageNumber
		}
		if (hasKey(body, "offset") && hasKey(body, "limit")) || (hasKey(body, "skip") && hasKey(body, "take")) {
			return OffsetLimit
		}
	}
	return None
}

func hasAny(body map[string]any, paths ...string) bool {
	for _, p := range paths {
		if _, ok := dotGet(body, p); ok {
			return true
		}
	}
	return false
}

func hasKey(body map[string]any, key string) bool {
	_, ok := body[key]
	return ok
}

func dotGet(body map[string]any, path string) (any, bool) {
	cur := any(body)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ExtractItems pulls the item list out of a page body per spec.md §4.6's
// extraction precedence.
func ExtractItems(body any, dataPath string) []any {
	if dataPath != "" {
		m, ok := body.(map[string]any)
		if ok {
			if v, ok := dotGet(m, dataPath); ok {
				return toSlice(v)
			}
		}
		return nil
	}

	m, ok := body.(map[string]any)
	if !ok {
		return toSlice(body)
	}
	for _, key := range []string{"body", "data", "items", "results"} {
		if v, ok := m[key]; ok {
			if arr := toSlice(v); arr != nil {
				return arr
			}
		}
	}
	for _, v := range m {
		if arr, ok := v.([]any); ok {
			return arr
		}
	}
	return nil
}

func toSlice(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return nil
}

// Drive fetches pages until MaxPages is reached, the natural termination
// condition for the detected pattern is hit, or an empty page is returned.
func Drive(ctx context.Context, cfg Config, startURL string, startParams map[string]string, fetch FetchFunc) (*Result, error) {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	params := cloneParams(startParams)
	url := startURL

	first, err := fetch(ctx, url, params)
	if err != nil {
		return nil, err
	}

	pattern := Detect(cfg.ForcePattern, *first)
	result := &Result{Pattern: pattern}

	page := first
	for i := 0; i < maxPages; i++ {
		items := ExtractItems(page.Body, cfg.DataPath)
		result.Items = append(result.Items, items...)
		result.Pages++

		if len(items) == 0 {
			return result, nil
		}

		nextURL, nextParams, ok := nextRequest(pattern, *page, url, params)
		if !ok {
			return result, nil
		}

		if i == maxPages-1 {
			result.Dropped = true
			break
		}

		url, params = nextURL, nextParams
		page, err = fetch(ctx, url, params)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func cloneParams(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// nextRequest builds the next page's request per pattern, returning
// ok=false when the pattern signals natural termination.
func nextRequest(pattern Pattern, page Page, curURL string, curParams map[string]string) (string, map[string]string, bool) {
	body, _ := page.Body.(map[string]any)

	switch pattern {
	case LinkHeader:
		link := page.Headers.Get("Link")
		next := parseLinkHeaderNext(link)
		if next == "" {
			return "", nil, false
		}
		return next, map[string]string{}, true

	case Cursor:
		cursor, ok := firstString(body, "pagination.next_cursor", "next_cursor", "cursor", "nextPageToken", "next_page_token")
		if !ok || cursor == "" {
			return "", nil, false
		}
		params := cloneParams(curParams)
		params["cursor"] = cursor
		return curURL, params, true

	case OffsetLimit:
		offset, hasOffset := firstNumber(body, "offset")
		limit, hasLimit := firstNumber(body, "limit")
		if !hasLimit {
			limit, hasLimit = firstNumber(body, "take")
		}
		if !hasOffset {
			offset, hasOffset = firstNumber(body, "skip")
		}
		if !hasOffset || !hasLimit || limit <= 0 {
			return "", nil, false
		}
		params := cloneParams(curParams)
		params["offset"] = strconv.Itoa(offset + limit)
		params["limit"] = strconv.Itoa(limit)
		return curURL, params, true

	case PageNumber:
		page_, hasPage := firstNumber(body, "page")
		if !hasPage {
			page_, hasPage = firstNumber(body, "current_page")
		}
		if !hasPage {
			page_, hasPage = firstNumber(body, "pageNumber")
		}
		totalPages, hasTotal := firstNumber(body, "total_pages")
		if hasTotal && page_ >= totalPages {
			return "", nil, false
		}
		if !hasPage {
			return "", nil, false
		}
		params := cloneParams(curParams)
		params["page"] = strconv.Itoa(page_ + 1)
		return curURL, params, true

	default:
		return "", nil, false
	}
}

func firstString(body map[string]any, paths ...string) (string, bool) {
	for _, p := range paths {
		if v, ok := dotGet(body, p); ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func firstNumber(body map[string]any, key string) (int, bool) {
	if body == nil {
		return 0, false
	}
	v, ok := body[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func parseLinkHeaderNext(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}
