package throttle

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every worker in a run.
// Capacity and refill rate both equal the configured ceiling, so a full
// bucket allows a one-second burst while the long-run admitted rate
// never exceeds the ceiling.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a full bucket with the given requests/sec ceiling.
func NewRateLimiter(ratePerSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     ratePerSecond,
		capacity:   ratePerSecond,
		refillRate: ratePerSecond,
		lastRefill: time.Now(),
	}
}

// Acquire blocks until one token is available, then consumes it.
// The sleep happens outside the lock so a waiting caller never blocks
// other acquirers from taking tokens that become available first.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refillLocked(time.Now())
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			tokensAcquired.Inc()
			return nil
		}
		// Time until one full token accumulates at the refill rate.
		deficit := 1 - rl.tokens
		wait := time.Duration(deficit / rl.refillRate * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available reports the current token count, for metrics and tests.
func (rl *RateLimiter) Available() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	return rl.tokens
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now
	bucketTokens.Set(rl.tokens)
}
