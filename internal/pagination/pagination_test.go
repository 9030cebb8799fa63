package pagination

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLinkHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Link", `<https://api.example.com/x?page=2>; rel="next"`)
	p := Detect("", Page{Headers: h})
	assert.Equal(t, LinkHeader, p)
}

func TestDetectCursor(t *testing.T) {
	p := Detect("", Page{Body: map[string]any{"next_cursor": "abc"}, Headers: http.Header{}})
	assert.Equal(t, Cursor, p)
}

func TestDetectPageNumber(t *testing.T) {
	p := Detect("", Page{Body: map[string]any{"page": float64(1), "total_pages": float64(3)}, Headers: http.Header{}})
	assert.Equal(t, PageNumber, p)
}

func TestDetectOffsetLimit(t *testing.T) {
	p := Detect("", Page{Body: map[string]any{"offset": float64(0), "limit": float64(10)}, Headers: http.Header{}})
	assert.Equal(t, OffsetLimit, p)
}

func TestDetectNone(t *testing.T) {
	p := Detect("", Page{Body: map[string]any{"foo": "bar"}, Headers: http.Header{}})
	assert.Equal(t, None, p)
}

func TestDetectForcedOverride(t *testing.T) {
	p := Detect(Cursor, Page{Body: map[string]any{"page": float64(1), "total_pages": float64(3)}, Headers: http.Header{}})
	assert.Equal(t, Cursor, p)
}

func TestExtractItemsPrecedence(t *testing.T) {
	assert.Equal(t, []any{"a"}, ExtractItems(map[string]any{"data": []any{"a"}}, ""))
	assert.Equal(t, []any{"b"}, ExtractItems(map[string]any{"items": []any{"b"}}, ""))
	assert.Equal(t, []any{"c"}, ExtractItems(map[string]any{"weird_key": []any{"c"}}, ""))
}

func TestExtractItemsExplicitPath(t *testing.T) {
	body := map[string]any{"pagination": map[string]any{"rows": []any{"x", "y"}}}
	assert.Equal(t, []any{"x", "y"}, ExtractItems(body, "pagination.rows"))
}

func TestDriveCursorPagination(t *testing.T) {
	pages := []Page{
		{Body: map[string]any{"items": []any{"a", "b"}, "next_cursor": "c2"}},
		{Body: map[string]any{"items": []any{"c"}, "next_cursor": "c3"}},
		{Body: map[string]any{"items": []any{"d"}}}, // no cursor: terminates
	}
	call := 0
	fetch := func(ctx context.Context, url string, params map[string]string) (*Page, error) {
		p := pages[call]
		call++
		return &p, nil
	}

	result, err := Drive(context.Background(), Config{}, "https://api/x", nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c", "d"}, result.Items)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, Cursor, result.Pattern)
	assert.False(t, result.Dropped)
}

func TestDriveStopsOnEmptyPage(t *testing.T) {
	pages := []Page{
		{Body: map[string]any{"items": []any{"a"}, "cursor": "next"}},
		{Body: map[string]any{"items": []any{}}},
	}
	call := 0
	fetch := func(ctx context.Context, url string, params map[string]string) (*Page, error) {
		p := pages[call]
		call++
		return &p, nil
	}

	result, err := Drive(context.Background(), Config{}, "https://api/x", nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, result.Items)
	assert.Equal(t, 2, result.Pages)
}

func TestDriveRespectsMaxPages(t *testing.T) {
	fetch := func(ctx context.Context, url string, params map[string]string) (*Page, error) {
		return &Page{Body: map[string]any{"items": []any{"x"}, "cursor": "more"}}, nil
	}

	result, err := Drive(context.Background(), Config{MaxPages: 2}, "https://api/x", nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	assert.True(t, result.Dropped)
}

func TestDriveOffsetLimit(t *testing.T) {
	pages := []Page{
		{Body: map[string]any{"items": []any{"a", "b"}, "offset": float64(0), "limit": float64(2)}},
		{Body: map[string]any{"items": []any{"c"}, "offset": float64(2), "limit": float64(2)}},
		{Body: map[string]any{"items": []any{}, "offset": float64(4), "limit": float64(2)}},
	}
	var seenParams []map[string]string
	call := 0
	fetch := func(ctx context.Context, url string, params map[string]string) (*Page, error) {
		seenParams = append(seenParams, params)
		p := pages[call]
		call++
		return &p, nil
	}

	result, err := Drive(context.Background(), Config{}, "https://api/x", nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, result.Items)
	assert.Equal(t, "2", seenParams[1]["offset"])
	assert.Equal(t, "2", seenParams[1]["limit"])
}

func TestDriveLinkHeader(t *testing.T) {
	h1 := http.Header{}
	h1.Set("Link", `<https://api/x?page=2>; rel="next"`)
	h2 := http.Header{}

	pages := []Page{
		{Body: map[string]any{"items": []any{"a"}}, Headers: h1},
		{Body: map[string]any{"items": []any{"b"}}, Headers: h2},
	}
	var seenURLs []string
	call := 0
	fetch := func(ctx context.Context, url string, params map[string]string) (*Page, error) {
		seenURLs = append(seenURLs, url)
		p := pages[call]
		call++
		return &p, nil
	}

	result, err := Drive(context.Background(), Config{}, "https://api/x", nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, result.Items)
	assert.Equal(t, "https://api/x?page=2", seenURLs[1])
}
