package throttle

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the circuit's current mode.
type BreakerState int

const (
	// BreakerClosed admits calls normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen pauses every caller until the cooldown expires.
	BreakerOpen
)

func (s BreakerState) String() string {
	if s == BreakerOpen {
		return "open"
	}
	return "closed"
}

// CircuitBreaker opens after a run of consecutive failures and pauses
// all callers for a cooldown measured from the last failure. There is
// no half-open probe: on cooldown expiry the breaker resets to closed
// with zero failures and the next call proceeds optimistically. An
// immediately recurring failure streak re-opens it just as fast; that
// is the intended back-pressure.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	failures    int
	lastFailure time.Time
	state       BreakerState

	// OnStateChange, if set, is invoked outside the lock whenever the
	// breaker opens or closes. The orchestrator uses it to surface
	// state changes on the CLI; an open breaker silently stalls the
	// whole run otherwise.
	OnStateChange func(s BreakerState)
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     BreakerClosed,
	}
}

// Execute runs fn, first waiting out any remaining cooldown if the
// circuit is open. Every error from fn counts as one failure; a success
// while closed resets the failure streak.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.waitIfOpen(ctx); err != nil {
		return err
	}

	err := fn(ctx)

	cb.mu.Lock()
	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		opened := cb.state == BreakerClosed && cb.failures >= cb.threshold
		if opened {
			cb.state = BreakerOpen
			breakerState.Set(1)
			breakerTrips.Inc()
		}
		notify := cb.OnStateChange
		cb.mu.Unlock()
		if opened && notify != nil {
			notify(BreakerOpen)
		}
		return err
	}
	cb.failures = 0
	cb.mu.Unlock()
	return nil
}

// State reports the current mode without waiting.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures reports the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// waitIfOpen sleeps out the remaining cooldown (without holding the
// lock) and then resets the breaker. The cooldown is anchored to the
// last failure, not to the moment the circuit opened.
func (cb *CircuitBreaker) waitIfOpen(ctx context.Context) error {
	cb.mu.Lock()
	if cb.state != BreakerOpen {
		cb.mu.Unlock()
		return nil
	}
	remaining := cb.cooldown - time.Since(cb.lastFailure)
	cb.mu.Unlock()

	if remaining > 0 {
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	cb.mu.Lock()
	var notify func(BreakerState)
	if cb.state == BreakerOpen {
		cb.state = BreakerClosed
		cb.failures = 0
		breakerState.Set(0)
		notify = cb.OnStateChange
	}
	cb.mu.Unlock()
	if notify != nil {
		notify(BreakerClosed)
	}
	return nil
}
