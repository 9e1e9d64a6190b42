package throttle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxRetries is the attempt budget for one logical operation.
const DefaultMaxRetries = 3

// UnitOfWork is one logical remote operation. It may be invoked several
// times by the retry loop; implementations must be safe to repeat.
type UnitOfWork func(ctx context.Context) error

// Client composes the rate limiter, circuit breaker and retry loop
// around a single logical remote call. One Client instance is shared by
// all workers in a run.
type Client struct {
	limiter    *RateLimiter
	breaker    *CircuitBreaker
	backoff    BackoffStrategy
	maxRetries int
	logger     *zap.Logger
}

// NewClient wires the shared limiter and breaker into a resilient
// caller. Pass the same instances to every consumer; they are the only
// cross-worker synchronization points.
func NewClient(limiter *RateLimiter, breaker *CircuitBreaker, backoff BackoffStrategy, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		limiter:    limiter,
		breaker:    breaker,
		backoff:    backoff,
		maxRetries: DefaultMaxRetries,
		logger:     logger,
	}
}

// Do runs one logical operation: acquire a token, then execute through
// the breaker with up to maxRetries attempts inside. Terminal client
// errors (4xx except 429) propagate on the first attempt; transient
// errors back off exponentially. However many attempts were burned, the
// breaker counts at most one failure per call to Do.
func (c *Client) Do(ctx context.Context, op string, unit UnitOfWork) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		var lastErr error
		for attempt := 0; attempt < c.maxRetries; attempt++ {
			err := unit(ctx)
			if err == nil {
				return nil
			}
			lastErr = err
			if !IsRetryable(err) {
				c.logger.Debug("terminal client error",
					zap.String("op", op),
					zap.Error(err))
				return err
			}
			if attempt == c.maxRetries-1 {
				break
			}
			wait := c.backoff.Next(attempt)
			retriesTotal.Inc()
			c.logger.Debug("retrying after transient error",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
				zap.Error(err))
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}
		return lastErr
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
