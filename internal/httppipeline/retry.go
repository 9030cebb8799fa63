package httppipeline

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// retryableNetworkCodes are the transport-level error codes spec.md §4.4
// treats as retryable.
var retryableNetworkCodes = map[string]bool{
	"ECONNRESET":  true,
	"ETIMEDOUT":   true,
	"ENOTFOUND":   true,
	"ENETUNREACH": true,
	"EAI_AGAIN":   true,
}

var retryableStatuses = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// IsRetryableStatus reports whether an HTTP status code is retryable.
func IsRetryableStatus(status int) bool { return retryableStatuses[status] }

// IsRetryableNetworkCode reports whether a transport error code is retryable.
func IsRetryableNetworkCode(code string) bool { return retryableNetworkCodes[code] }

// outcome is the uniform shape returned by a single attempt of the
// underlying operation, prior to the retry/circuit-breaker wrapping.
type outcome struct {
	status    int // 0 means "no response" (transport-level failure)
	netCode   string
	err       error
	retryable bool
}

func (o outcome) isRetryable() bool {
	if o.err == nil {
		return false
	}
	if o.status != 0 {
		return IsRetryableStatus(o.status)
	}
	if o.netCode != "" {
		return IsRetryableNetworkCode(o.netCode)
	}
	// transport-level error with no response and no recognized code: per
	// spec.md §4.4, still retryable.
	return true
}

// execResult is the internal result of runWithRetry, before translation
// into the public Result envelope.
type execResult struct {
	success    bool
	attempts   int
	totalDelay time.Duration
	lastErr    error
	lastStatus int
	circuitOpen bool
}

// computeBackoff implements spec.md §4.4's formula:
// delay = min(baseDelay*2^attempt, maxDelay) + uniform(0, jitterFactor*cappedDelay)
func computeBackoff(cfg RetryConfig, attempt int) time.Duration {
	base := float64(cfg.BaseDelay)
	capped := base
	for i := 0; i < attempt; i++ {
		capped *= 2
	}
	if capped > float64(cfg.MaxDelay) {
		capped = float64(cfg.MaxDelay)
	}
	jitter := rand.Float64() * cfg.JitterFactor * capped
	return time.Duration(capped + jitter)
}

// attemptFunc performs one HTTP round trip and classifies its outcome.
type attemptFunc func(ctx context.Context) outcome

// runWithRetry implements the retry manager + circuit breaker of spec.md
// §4.4: before the first attempt, a tripped breaker short-circuits with zero
// attempts; otherwise it retries retryable failures with backoff up to
// cfg.MaxRetries, resetting the breaker on success and incrementing it on
// every terminal failure.
func (c *Client) runWithRetry(ctx context.Context, breakerKey string, cfg RetryConfig, attempt attemptFunc) execResult {
	if c.breakers.Open(breakerKey) {
		return execResult{success: false, circuitOpen: true}
	}

	var totalDelay time.Duration
	for i := 0; ; i++ {
		o := attempt(ctx)
		if o.err == nil {
			c.breakers.RecordSuccess(breakerKey)
			return execResult{success: true, attempts: i + 1, totalDelay: totalDelay, lastStatus: o.status}
		}

		retryable := o.isRetryable()
		if !retryable || i >= cfg.MaxRetries {
			c.breakers.RecordFailure(breakerKey)
			return execResult{
				success:    false,
				attempts:   i + 1,
				totalDelay: totalDelay,
				lastErr:    o.err,
				lastStatus: o.status,
			}
		}

		delay := computeBackoff(cfg, i)
		totalDelay += delay

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.breakers.RecordFailure(breakerKey)
			return execResult{success: false, attempts: i + 1, totalDelay: totalDelay, lastErr: ctx.Err()}
		}
	}
}

// ErrCircuitOpen is the fail-fast sentinel of spec.md §4.4/§7.
var ErrCircuitOpen = errors.New("CIRCUIT_OPEN: circuit breaker open")
