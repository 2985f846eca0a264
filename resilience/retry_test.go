package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kbukum/scribe/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		calls++
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 1 {
		t.Errorf("result = %q calls = %d, want ok/1", result, calls)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastRetry(4), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.Transient("whisper", nil)
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Errorf("result = %q calls = %d, want ok/3", result, calls)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	transient := errors.Transient("whisper", nil)
	_, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		calls++
		return "", transient
	})

	if !stderrors.Is(err, transient) {
		t.Errorf("expected last transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetry(5), func() (string, error) {
		calls++
		return "", errors.AuthFailed("whisper")
	})

	if errors.CodeOf(err) != errors.ErrCodeAuthFailed {
		t.Errorf("expected auth error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry budget consumed)", calls)
	}
}

func TestRetry_TimeoutIsRetryable(t *testing.T) {
	calls := 0
	_, _ = Retry(context.Background(), fastRetry(2), func() (string, error) {
		calls++
		return "", errors.Timeout("transcribe chunk 0")
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond, BackoffFactor: 2.0}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, cfg, func() (string, error) {
		calls++
		return "", errors.Transient("whisper", nil)
	})

	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls >= 10 {
		t.Errorf("expected cancellation to stop retries, got %d calls", calls)
	}
}

func TestBackoffFor_Caps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
		BackoffFactor:  10.0,
	}
	cfg.ApplyDefaults()

	if d := backoffFor(5, cfg); d > cfg.MaxBackoff {
		t.Errorf("backoff %v exceeds cap %v", d, cfg.MaxBackoff)
	}
}
