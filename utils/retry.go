package utils

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// RetryPolicy retries an operation with exponential backoff.
// Delay doubles per attempt and is capped at 30s.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// IsRetryable decides whether a failure is worth another attempt.
	// nil retries everything.
	IsRetryable func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		IsRetryable: IsNetworkError,
	}
}

// Do runs fn until it succeeds, retries are exhausted, or ctx is done.
// The last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.IsRetryable != nil && !p.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		shift := attempt
		if shift > 5 {
			shift = 5
		}
		sleep := baseDelay * time.Duration(1<<shift)
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}

// IsNetworkError reports whether err looks like a transient transport failure
// (dial/read timeouts, refused connections, dropped MySQL or Redis links).
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no such host",
		"invalid connection",
		"bad connection",
		"unexpected eof",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
