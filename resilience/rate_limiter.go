package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by non-blocking acquisition when no token is available.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig expresses a provider's request budget as
// (max requests, time window), the shape most speech APIs document.
type RateLimiterConfig struct {
	// Name identifies this limiter for logging.
	Name string
	// Requests is the number of requests allowed per Window.
	Requests int
	// Window is the budget interval.
	Window time.Duration
	// Burst is the maximum burst size. Defaults to Requests.
	Burst int
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *RateLimiterConfig) ApplyDefaults() {
	if c.Requests <= 0 {
		c.Requests = 10
	}
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.Burst <= 0 {
		c.Burst = c.Requests
	}
}

// RateLimiter is a token bucket shared by all chunks of a job (and,
// when configured process-wide, across jobs). Callers block in Wait
// until a token is available, so total throughput respects the
// provider's budget regardless of dispatch concurrency.
type RateLimiter struct {
	cfg  RateLimiterConfig
	rate float64 // tokens per second

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter from the given budget.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	cfg.ApplyDefaults()
	return &RateLimiter{
		cfg:        cfg,
		rate:       float64(cfg.Requests) / cfg.Window.Seconds(),
		tokens:     float64(cfg.Burst),
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available, without blocking.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	wait := rl.reserve()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// The reservation was never honored; hand it back.
		rl.refund()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// reserve takes one token, going negative if necessary, and returns
// how long the caller must wait before the reservation is honored.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	rl.tokens--
	if rl.tokens >= 0 {
		return 0
	}
	waitSeconds := -rl.tokens / rl.rate
	return time.Duration(waitSeconds * float64(time.Second))
}

// refund returns an unused reservation to the bucket.
func (rl *RateLimiter) refund() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens++
	if rl.tokens > float64(rl.cfg.Burst) {
		rl.tokens = float64(rl.cfg.Burst)
	}
}

// refill adds tokens based on elapsed time, capped at the burst size.
// Caller must hold mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	rl.tokens += elapsed * rl.rate
	if rl.tokens > float64(rl.cfg.Burst) {
		rl.tokens = float64(rl.cfg.Burst)
	}
}
