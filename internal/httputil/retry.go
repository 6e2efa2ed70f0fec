package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
)

// ErrRetriesExhausted marks a request that failed on every attempt.
// Callers use errors.Is to tell an exhausted retry loop apart from a
// non-retryable failure.
var ErrRetriesExhausted = errors.New("retries exhausted")

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnRetry, if set, is called once after each failed attempt,
	// including the last.
	OnRetry func(attempt int, err error)
}

// DefaultRetry suits public Solana RPC nodes, which rate-limit
// aggressively. Six attempts with a doubling delay spans roughly a
// minute before giving up.
var DefaultRetry = RetryConfig{
	MaxAttempts: 6,
	BaseDelay:   1 * time.Second,
	MaxDelay:    30 * time.Second,
}

var logger = observability.NewLogger("httputil")

// Do executes an HTTP request with exponential backoff retry.
// Transport errors, 5xx responses and 429 rate limits are retried;
// any other status is returned to the caller as-is.
// The buildReq function is called on each attempt to produce a fresh request
// (required because request bodies are consumed on each attempt).
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("delay", delay).
			Err(lastErr).
			Msg("request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return nil, fmt.Errorf("%w: all %d attempts failed, last error: %w", ErrRetriesExhausted, cfg.MaxAttempts, lastErr)
}
