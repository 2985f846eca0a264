package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/scribe/errors"
)

func chainTargets(calls map[string]*int, results map[string]error) []Target[string] {
	var targets []Target[string]
	for _, name := range []string{"primary", "fallback"} {
		if _, ok := results[name]; !ok {
			continue
		}
		name := name
		targets = append(targets, Target[string]{
			Name: name,
			Call: func(ctx context.Context) (string, error) {
				*calls[name]++
				if err := results[name]; err != nil {
					return "", err
				}
				return "text from " + name, nil
			},
		})
	}
	return targets
}

func TestExecute_PrimarySucceeds(t *testing.T) {
	primary, fallback := 0, 0
	targets := chainTargets(
		map[string]*int{"primary": &primary, "fallback": &fallback},
		map[string]error{"primary": nil, "fallback": nil},
	)

	res, err := Execute(context.Background(), Policy{Retry: fastRetry(3)}, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Target != "primary" || res.Index != 0 {
		t.Errorf("expected primary at index 0, got %s at %d", res.Target, res.Index)
	}
	if primary != 1 || fallback != 0 {
		t.Errorf("calls = %d/%d, want 1/0", primary, fallback)
	}
}

func TestExecute_FallbackAfterExhaustedRetries(t *testing.T) {
	primary, fallback := 0, 0
	targets := chainTargets(
		map[string]*int{"primary": &primary, "fallback": &fallback},
		map[string]error{"primary": errors.Transient("primary", nil), "fallback": nil},
	)

	res, err := Execute(context.Background(), Policy{Retry: fastRetry(3)}, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Target != "fallback" || res.Index != 1 {
		t.Errorf("expected fallback at index 1, got %s at %d", res.Target, res.Index)
	}
	// Primary consumed its full retry budget before the fallback fired.
	if primary != 3 {
		t.Errorf("primary calls = %d, want 3", primary)
	}
	if fallback != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback)
	}
	if res.Attempts != 4 {
		t.Errorf("total attempts = %d, want 4", res.Attempts)
	}
}

func TestExecute_AllTargetsExhausted(t *testing.T) {
	primary, fallback := 0, 0
	transient := errors.Transient("fallback", nil)
	targets := chainTargets(
		map[string]*int{"primary": &primary, "fallback": &fallback},
		map[string]error{"primary": errors.Transient("primary", nil), "fallback": transient},
	)

	_, err := Execute(context.Background(), Policy{Retry: fastRetry(2)}, targets)
	if err == nil {
		t.Fatal("expected error when every target is exhausted")
	}
	if primary != 2 || fallback != 2 {
		t.Errorf("calls = %d/%d, want 2/2 (fresh budget per target)", primary, fallback)
	}
}

func TestExecute_NonRetryableAbortsChain(t *testing.T) {
	primary, fallback := 0, 0
	targets := chainTargets(
		map[string]*int{"primary": &primary, "fallback": &fallback},
		map[string]error{"primary": errors.AuthFailed("primary"), "fallback": nil},
	)

	_, err := Execute(context.Background(), Policy{Retry: fastRetry(3)}, targets)
	if errors.CodeOf(err) != errors.ErrCodeAuthFailed {
		t.Fatalf("expected auth error, got %v", err)
	}
	if primary != 1 || fallback != 0 {
		t.Errorf("calls = %d/%d, want 1/0 (auth failure must not fall back)", primary, fallback)
	}
}

func TestExecute_ObserverSeesEveryAttempt(t *testing.T) {
	var mu sync.Mutex
	var attempts []Attempt

	primary, fallback := 0, 0
	targets := chainTargets(
		map[string]*int{"primary": &primary, "fallback": &fallback},
		map[string]error{"primary": errors.Transient("primary", nil), "fallback": nil},
	)

	p := Policy{
		Retry: fastRetry(2),
		Observer: func(a Attempt) {
			mu.Lock()
			attempts = append(attempts, a)
			mu.Unlock()
		},
	}

	if _, err := Execute(context.Background(), p, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(attempts) != 3 {
		t.Fatalf("observer saw %d attempts, want 3", len(attempts))
	}
	if attempts[0].Target != "primary" || attempts[0].Err == nil {
		t.Errorf("first attempt should be a failed primary call: %+v", attempts[0])
	}
	if last := attempts[2]; last.Target != "fallback" || last.Err != nil {
		t.Errorf("last attempt should be a successful fallback call: %+v", last)
	}
}

func TestExecute_SharedLimiterGatesAttempts(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Requests: 50, Window: time.Second, Burst: 1})
	calls := 0
	target := []Target[string]{{
		Name: "primary",
		Call: func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.Transient("primary", nil)
			}
			return "ok", nil
		},
	}}

	start := time.Now()
	_, err := Execute(context.Background(), Policy{Limiter: rl, Retry: fastRetry(5)}, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Three attempts through a 20ms/token bucket needs at least ~40ms.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("limiter did not gate attempts: elapsed %v", elapsed)
	}
}

func TestExecute_NoTargets(t *testing.T) {
	_, err := Execute[string](context.Background(), Policy{}, nil)
	if errors.CodeOf(err) != errors.ErrCodeConfigInvalid {
		t.Errorf("expected config error, got %v", err)
	}
}
