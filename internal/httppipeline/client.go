package httppipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/flowcore/taskrunner/internal/breaker"
	"github.com/flowcore/taskrunner/internal/logger"
	"github.com/flowcore/taskrunner/internal/oauth"
	"github.com/flowcore/taskrunner/internal/pagination"
	"github.com/flowcore/taskrunner/internal/parser"
	"github.com/flowcore/taskrunner/internal/ratelimit"
)

// Client is the HTTP pipeline: retry + backoff, circuit breaker, rate
// limiting, response parsing, pagination, and OAuth, composed around a
// go-resty transport.
type Client struct {
	http      *resty.Client
	rateLimit *ratelimit.Registry
	breakers  *breaker.Registry
	oauthMgr  *oauth.Manager
	log       logger.Logger
}

// New builds a Client. oauthMgr may be nil if no request will set Options.OAuth.
func New(rateLimit *ratelimit.Registry, breakers *breaker.Registry, oauthMgr *oauth.Manager, log logger.Logger) *Client {
	if log == nil {
		log = logger.Default
	}
	return &Client{
		http:      resty.New(),
		rateLimit: rateLimit,
		breakers:  breakers,
		oauthMgr:  oauthMgr,
		log:       log,
	}
}

// Do executes one logical HTTP request through the full pipeline.
func (c *Client) Do(ctx context.Context, opts Options) *Result {
	headers := cloneHeaders(opts.Headers)

	if opts.OAuth != nil {
		token, err := c.oauthMgr.ValidToken(ctx, opts.OAuth.Provider, opts.OAuth.UserID)
		if err != nil {
			return errorEnvelope("OAUTH_ERROR", err.Error(), 0, false, Metadata{})
		}
		headers["Authorization"] = token.Type() + " " + token.AccessToken
	}

	if opts.RateLimitKey != "" || opts.RateLimitAPI != "" {
		if err := c.rateLimit.WaitAndConsume(ctx, opts.RateLimitKey, opts.RateLimitAPI); err != nil {
			return errorEnvelope("RATE_LIMIT_WAIT_CANCELED", err.Error(), 0, false, Metadata{})
		}
	}

	retryCfg := DefaultRetryConfig()
	if opts.RetryConfig != nil {
		retryCfg = *opts.RetryConfig
	}
	breakerKey := strings.ToUpper(opts.Method) + " " + opts.URL

	if opts.Pagination != nil {
		return c.doPaginated(ctx, opts, headers, retryCfg, breakerKey)
	}

	return c.doSingle(ctx, opts, opts.URL, opts.Params, headers, retryCfg, breakerKey)
}

func (c *Client) doSingle(ctx context.Context, opts Options, url string, params map[string]string, headers map[string]string, retryCfg RetryConfig, breakerKey string) *Result {
	var (
		lastResp *resty.Response
		lastBody []byte
	)

	attempt := func(ctx context.Context) outcome {
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		req := c.http.R().SetContext(ctx)
		if len(headers) > 0 {
			req.SetHeaders(headers)
		}
		if len(params) > 0 {
			req.SetQueryParams(params)
		}
		if opts.Data != nil {
			req.SetBody(opts.Data)
		}

		resp, err := req.Execute(strings.ToUpper(opts.Method), url)
		if err != nil {
			return outcome{err: err, netCode: classifyNetworkError(err)}
		}
		lastResp = resp
		lastBody = resp.Body()

		status := resp.StatusCode()
		if status >= 400 {
			return outcome{status: status, err: fmt.Errorf("HTTP_%d", status)}
		}
		return outcome{status: status}
	}

	result := c.runWithRetry(ctx, breakerKey, retryCfg, attempt)

	metadata := Metadata{Attempts: result.attempts, TotalDelay: result.totalDelay.Milliseconds()}

	if result.circuitOpen {
		return errorEnvelope("CIRCUIT_OPEN", "circuit breaker open", 0, false, Metadata{})
	}

	if !result.success {
		code, retryable := classifyError(result)
		return errorEnvelope(code, errMessage(result.lastErr), result.lastStatus, retryable, metadata)
	}

	if c.rateLimit != nil && lastResp != nil && opts.RateLimitKey != "" {
		c.rateLimit.ApplyResponseHeaders(opts.RateLimitKey, lastResp.Header())
	}

	parsed, format, err := parser.Parse(lastBody, lastResp.Header().Get("Content-Type"), opts.ParserConfig)
	if err != nil {
		metadata.Format = string(format)
		return errorEnvelope(parseErrorCode(err), err.Error(), result.lastStatus, false, metadata)
	}
	metadata.Format = string(format)

	return &Result{
		Success:    true,
		Status:     result.lastStatus,
		StatusText: http.StatusText(result.lastStatus),
		Headers:    lastResp.Header(),
		Data:       parsed,
		Metadata:   metadata,
	}
}

func (c *Client) doPaginated(ctx context.Context, opts Options, headers map[string]string, retryCfg RetryConfig, breakerKey string) *Result {
	fetch := func(ctx context.Context, url string, params map[string]string) (*pagination.Page, error) {
		r := c.doSingle(ctx, opts, url, params, headers, retryCfg, breakerKey)
		if !r.Success {
			return nil, r.AsError()
		}
		return &pagination.Page{Body: r.Data, Headers: r.Headers}, nil
	}

	pages, err := pagination.Drive(ctx, *opts.Pagination, opts.URL, opts.Params, fetch)
	if err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return errorEnvelope(pe.Detail.Code, pe.Detail.Message, pe.Detail.Status, pe.Detail.Retryable, Metadata{})
		}
		return errorEnvelope("PAGINATION_ERROR", err.Error(), 0, false, Metadata{})
	}

	return &Result{
		Success:  true,
		Data:     pages.Items,
		Pages:    pages,
		Metadata: Metadata{Attempts: pages.Pages},
	}
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func classifyNetworkError(err error) string {
	msg := err.Error()
	for code := range retryableNetworkCodes {
		if strings.Contains(msg, code) {
			return code
		}
	}
	return ""
}

func classifyError(r execResult) (code string, retryable bool) {
	if r.lastStatus != 0 {
		return fmt.Sprintf("HTTP_%d", r.lastStatus), IsRetryableStatus(r.lastStatus)
	}
	return "NETWORK_ERROR", true
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func parseErrorCode(err error) string {
	if _, ok := err.(*parser.ErrSchemaValidationFailed); ok {
		return "SCHEMA_VALIDATION_FAILED"
	}
	return "PARSE_ERROR"
}

func errorEnvelope(code, message string, status int, retryable bool, metadata Metadata) *Result {
	return &Result{
		Success: false,
		Status:  status,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Status:    status,
			Retryable: retryable,
		},
		Metadata: metadata,
	}
}
