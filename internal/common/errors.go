// Package common holds the error taxonomy and small helpers shared by the
// market, llm and analysis packages.
package common

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConfiguration means credentials or settings are missing or invalid.
	// Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransientNetwork covers connectivity failures, timeouts, 5xx and 429.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrAuthExpired means a bearer token was rejected by the remote API.
	ErrAuthExpired = errors.New("auth token expired")

	// ErrAuthFailed means a token could not be obtained at all.
	ErrAuthFailed = errors.New("auth token fetch failed")

	// ErrMalformedResponse means a response was not valid JSON or was missing
	// required fields.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrEmptyInput means no images were supplied.
	ErrEmptyInput = errors.New("no images provided")

	// ErrAnalysisFailed is matched by the orchestrator's terminal error after
	// all attempts are used up.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// IsRetryable reports whether err should go through the backoff path.
// Malformed responses are retried like network errors since another attempt
// (or another tier) may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrEmptyInput) {
		return false
	}
	return errors.Is(err, ErrTransientNetwork) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrAuthExpired) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BackoffDelay returns base * 2^(retry-1) for retry >= 1.
func BackoffDelay(base time.Duration, retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return base << (retry - 1)
}
