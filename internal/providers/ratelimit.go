package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket limiting requests per second to a
// single backend. All workers invoking the same provider share one
// limiter.
type RateLimiter struct {
	mu sync.Mutex

	rps    float64
	tokens float64
	last   time.Time

	totalConsumed int64
	totalWaited   time.Duration
}

// NewRateLimiter creates a limiter allowing rps requests per second.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64) *RateLimiter {
	return &RateLimiter{
		rps:    rps,
		tokens: rps,
		last:   time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.rps <= 0 {
		return nil
	}
	start := time.Now()
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.totalWaited += time.Since(start)
			r.mu.Unlock()
			return nil
		}
		deficit := 1.0 - r.tokens
		wait := time.Duration(deficit / r.rps * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// refill adds tokens for elapsed time, capped at one second's worth.
// Caller must hold mu.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.last).Seconds()
	r.last = now

	r.tokens += elapsed * r.rps
	if r.tokens > r.rps {
		r.tokens = r.rps
	}
}

// Stats returns consumption counters for diagnostics.
func (r *RateLimiter) Stats() (consumed int64, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalConsumed, r.totalWaited
}
