package throttle

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRemote = errors.New("remote call failed")

func failing(ctx context.Context) error    { return errRemote }
func succeeding(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errRemote) {
			t.Fatalf("Execute returned %v, want errRemote", err)
		}
		if cb.State() != BreakerClosed {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}

	cb.Execute(ctx, failing)
	if cb.State() != BreakerOpen {
		t.Error("breaker still closed after 3 consecutive failures")
	}
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	ctx := context.Background()

	cb.Execute(ctx, failing)
	if err := cb.Execute(ctx, succeeding); err != nil {
		t.Fatalf("Execute returned %v on success", err)
	}
	if got := cb.Failures(); got != 0 {
		t.Fatalf("failure count %d after success, want 0", got)
	}

	// threshold-1 more failures must not open it.
	cb.Execute(ctx, failing)
	cb.Execute(ctx, failing)
	if cb.State() != BreakerOpen && cb.Failures() != 2 {
		t.Errorf("failure count %d, want 2", cb.Failures())
	}
	if cb.State() == BreakerOpen {
		t.Error("breaker opened after success reset plus 2 failures")
	}
}

func TestCircuitBreaker_OpenWaitsOutRemainingCooldown(t *testing.T) {
	const cooldown = 300 * time.Millisecond
	cb := NewCircuitBreaker(1, cooldown)
	ctx := context.Background()

	cb.Execute(ctx, failing)
	if cb.State() != BreakerOpen {
		t.Fatal("breaker not open after reaching threshold")
	}

	// A call strictly before the cooldown elapses must wait out the
	// remainder, measured from the last failure.
	start := time.Now()
	if err := cb.Execute(ctx, succeeding); err != nil {
		t.Fatalf("Execute after cooldown returned %v", err)
	}
	waited := time.Since(start)
	if waited < 200*time.Millisecond {
		t.Errorf("call waited only %v; want close to the %v cooldown", waited, cooldown)
	}

	if cb.State() != BreakerClosed {
		t.Error("breaker not closed after cooldown expiry")
	}
	if cb.Failures() != 0 {
		t.Errorf("failure count %d after reset, want 0", cb.Failures())
	}
}

func TestCircuitBreaker_NotifiesOnStateChange(t *testing.T) {
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	ctx := context.Background()

	var transitions []BreakerState
	cb.OnStateChange = func(s BreakerState) {
		transitions = append(transitions, s)
	}

	cb.Execute(ctx, failing)
	cb.Execute(ctx, succeeding)

	if len(transitions) != 2 || transitions[0] != BreakerOpen || transitions[1] != BreakerClosed {
		t.Errorf("transitions = %v, want [open closed]", transitions)
	}
}

func TestCircuitBreaker_ReopensImmediatelyAfterReset(t *testing.T) {
	// Recurring failures right after a cooldown reset re-open the
	// breaker as soon as the streak reaches the threshold again.
	cb := NewCircuitBreaker(1, 30*time.Millisecond)
	ctx := context.Background()

	cb.Execute(ctx, failing)
	if cb.State() != BreakerOpen {
		t.Fatal("breaker not open")
	}

	cb.Execute(ctx, failing)
	if cb.State() != BreakerOpen {
		t.Error("breaker did not re-open on the next failure after reset")
	}
}
