package utils_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/cascacheck/cascacheck_backend/utils"
)

func TestRetryPolicyStopsOnNonRetryableError(t *testing.T) {
	policy := utils.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		IsRetryable: utils.IsNetworkError,
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("record not found")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call for non-retryable error; got %d", calls)
	}
}

func TestRetryPolicyExhaustsRetryableError(t *testing.T) {
	policy := utils.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		IsRetryable: utils.IsNetworkError,
	}

	calls := 0
	failure := errors.New("dial tcp 127.0.0.1:3306: connection refused")
	err := policy.Do(context.Background(), func() error {
		calls++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected last error back; got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls; got %d", calls)
	}
}

func TestRetryPolicyRecovers(t *testing.T) {
	policy := utils.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("i/o timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry; got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls; got %d", calls)
	}
}

func TestRetryPolicyHonorsContextCancel(t *testing.T) {
	policy := utils.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Do(ctx, func() error {
		return errors.New("connection reset by peer")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}
}

func TestIsNetworkError(t *testing.T) {
	if utils.IsNetworkError(nil) {
		t.Fatalf("nil must not be a network error")
	}
	if utils.IsNetworkError(errors.New("record not found")) {
		t.Fatalf("record not found must not be a network error")
	}
	if !utils.IsNetworkError(errors.New("dial tcp: connection refused")) {
		t.Fatalf("connection refused must be a network error")
	}
	if !utils.IsNetworkError(errors.New("invalid connection")) {
		t.Fatalf("dropped mysql link must be a network error")
	}

	opErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}
	if !utils.IsNetworkError(opErr) {
		t.Fatalf("net.OpError must be a network error")
	}
	wrapped := errors.Join(errors.New("fetch failed"), opErr)
	if !utils.IsNetworkError(wrapped) {
		t.Fatalf("wrapped net.OpError must be a network error")
	}
}
