package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/scribe/errors"
)

// Attempt describes one call made under a Policy, reported to the
// caller-supplied observer. The policy itself keeps no log.
type Attempt struct {
	// Target is the name of the provider the call went to.
	Target string
	// Number is the 1-based attempt number against this target.
	Number int
	// Latency is how long the call took.
	Latency time.Duration
	// Err is nil on success.
	Err error
}

// Observer receives a report after every attempt.
type Observer func(Attempt)

// Target is one named unit of work in an ordered fallback chain.
type Target[T any] struct {
	// Name identifies the provider behind this target.
	Name string
	// Call performs the unit of work (e.g. stage + transcribe one chunk).
	Call func(ctx context.Context) (T, error)
}

// ChainResult reports which target in the chain produced the value.
type ChainResult[T any] struct {
	Value T
	// Target is the name of the target that succeeded.
	Target string
	// Index is the position of the successful target in the chain.
	// Index > 0 means a fallback fired.
	Index int
	// Attempts is the total number of calls made across all targets.
	Attempts int
}

// Policy wraps a unit of work with rate limiting, retry with backoff,
// and an ordered fallback chain. The limiter is shared: hand the same
// Policy to every chunk of a job and total throughput respects the
// provider's budget.
type Policy struct {
	// Limiter gates every individual attempt. Nil disables rate limiting.
	Limiter *RateLimiter
	// Retry is the per-target retry budget; it resets for each target.
	Retry RetryConfig
	// Observer receives one report per attempt. Nil disables reporting.
	Observer Observer
}

// Execute runs the targets in order. Each target gets a fresh retry
// budget; a retryable failure that exhausts the budget advances to the
// next target. A non-retryable failure (auth, malformed input) aborts
// the whole chain immediately. The error returned when all targets are
// exhausted is the last target's final error.
func Execute[T any](ctx context.Context, p Policy, targets []Target[T]) (ChainResult[T], error) {
	var zero ChainResult[T]
	if len(targets) == 0 {
		return zero, errors.InvalidConfig("resilience: no targets configured")
	}

	retryCfg := p.Retry
	retryCfg.ApplyDefaults()
	baseRetryIf := retryCfg.RetryIf

	var lastErr error
	totalAttempts := 0

	for idx, target := range targets {
		attemptNum := 0
		perTarget := retryCfg
		perTarget.RetryIf = baseRetryIf

		call := func() (T, error) {
			var zeroT T
			if p.Limiter != nil {
				if err := p.Limiter.Wait(ctx); err != nil {
					return zeroT, err
				}
			}
			attemptNum++
			totalAttempts++

			start := time.Now()
			value, err := target.Call(ctx)
			if p.Observer != nil {
				p.Observer(Attempt{
					Target:  target.Name,
					Number:  attemptNum,
					Latency: time.Since(start),
					Err:     err,
				})
			}
			return value, err
		}

		value, err := Retry(ctx, perTarget, call)
		if err == nil {
			return ChainResult[T]{
				Value:    value,
				Target:   target.Name,
				Index:    idx,
				Attempts: totalAttempts,
			}, nil
		}
		lastErr = err

		// Context errors and non-retryable failures stop the chain;
		// falling back cannot fix bad credentials or bad input.
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if !errors.IsRetryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
