// Package httppipeline implements the HTTP request pipeline of spec.md §4:
// exponential-backoff retry layered with a per-context circuit breaker,
// per-endpoint/per-API token-bucket rate limiting, response parsing,
// pagination, and OAuth 2.0 token lifecycle (via internal/oauth).
package httppipeline

import (
	"net/http"
	"time"

	"github.com/flowcore/taskrunner/internal/pagination"
	"github.com/flowcore/taskrunner/internal/parser"
)

// RetryConfig overrides the pipeline's default backoff parameters for a
// single request (spec.md §4.4 defaults: base=1s, max=30s, jitter=0.2, retries=3).
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryConfig returns spec.md §4.4's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterFactor: 0.2}
}

// OAuthOptions names the provider/user whose access token should be
// attached as an Authorization header, prefixed with the token's own type
// (e.g. "Bearer"), before the request is sent.
type OAuthOptions struct {
	Provider string
	UserID   string
}

// Options is one logical HTTP request through the pipeline (spec.md §6).
type Options struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  map[string]string
	Data    any
	Timeout time.Duration

	RetryConfig  *RetryConfig
	ParserConfig *parser.Config

	RateLimitKey string // endpoint key
	RateLimitAPI string // API key

	Pagination *pagination.Config
	OAuth      *OAuthOptions
}

// ErrorDetail is the nested "error" object of the error envelope.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Metadata carries diagnostic information about how a request was executed.
type Metadata struct {
	Attempts   int    `json:"attempts"`
	TotalDelay int64  `json:"totalDelay"` // milliseconds
	Format     string `json:"format,omitempty"`
}

// Result is the HTTP pipeline's response envelope (spec.md §6). Success is
// reported by Success==true with Data/Status/Headers populated; failure by
// Success==false with Error populated. This mirrors the spec's single
// envelope shape rather than Go's usual (value, error) — callers that want
// idiomatic errors can call Result.AsError().
type Result struct {
	Success    bool           `json:"success"`
	Status     int            `json:"status,omitempty"`
	StatusText string         `json:"statusText,omitempty"`
	Headers    http.Header    `json:"headers,omitempty"`
	Data       any            `json:"data,omitempty"`
	Error      *ErrorDetail   `json:"error,omitempty"`
	Metadata   Metadata       `json:"metadata"`
	Pages      *pagination.Result `json:"pages,omitempty"`
}

// AsError adapts a failed Result to a Go error, nil on success.
func (r *Result) AsError() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return &PipelineError{Detail: *r.Error}
}

// PipelineError wraps ErrorDetail as a Go error.
type PipelineError struct {
	Detail ErrorDetail
}

func (e *PipelineError) Error() string { return e.Detail.Code + ": " + e.Detail.Message }
