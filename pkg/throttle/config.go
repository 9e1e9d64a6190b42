package throttle

import (
	"fmt"
	"time"
)

// Config bounds the aggregate load a run may put on the backend.
// All values are fixed at run start and shared by every worker.
type Config struct {
	// Concurrency is the number of workers draining the queue.
	Concurrency int
	// RatePerSecond is the global request ceiling. The token bucket's
	// capacity and refill rate both equal this value.
	RatePerSecond float64
	// MinStepDelay/MaxStepDelay bound the randomized pause between
	// workflow phases.
	MinStepDelay time.Duration
	MaxStepDelay time.Duration
	// BackoffBase/BackoffMax bound the exponential retry backoff.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit; BreakerCooldown is measured from the last failure.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig returns the standard run configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:      10,
		RatePerSecond:    20,
		MinStepDelay:     500 * time.Millisecond,
		MaxStepDelay:     2 * time.Second,
		BackoffBase:      1 * time.Second,
		BackoffMax:       30 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
	}
}

// Validate rejects configurations that would stall or overrun the run.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0, got %d", c.Concurrency)
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("rate per second must be > 0, got %v", c.RatePerSecond)
	}
	if c.MinStepDelay <= 0 || c.MaxStepDelay <= 0 {
		return fmt.Errorf("step delays must be > 0, got min=%v max=%v", c.MinStepDelay, c.MaxStepDelay)
	}
	if c.MinStepDelay > c.MaxStepDelay {
		return fmt.Errorf("min step delay %v exceeds max %v", c.MinStepDelay, c.MaxStepDelay)
	}
	if c.BackoffBase <= 0 || c.BackoffMax <= 0 {
		return fmt.Errorf("backoff bounds must be > 0, got base=%v max=%v", c.BackoffBase, c.BackoffMax)
	}
	if c.BreakerThreshold <= 0 {
		return fmt.Errorf("breaker threshold must be > 0, got %d", c.BreakerThreshold)
	}
	if c.BreakerCooldown <= 0 {
		return fmt.Errorf("breaker cooldown must be > 0, got %v", c.BreakerCooldown)
	}
	return nil
}
