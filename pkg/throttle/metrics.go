package throttle

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// bucketTokens tracks the rate limiter's current token count.
	bucketTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ballotsim_bucket_tokens",
			Help: "Current token count in the shared rate limiter bucket",
		},
	)

	// tokensAcquired counts admitted requests.
	tokensAcquired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballotsim_tokens_acquired_total",
			Help: "Total requests admitted by the rate limiter",
		},
	)

	// breakerState is 0 when closed, 1 when open.
	breakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ballotsim_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open)",
		},
	)

	// breakerTrips counts closed-to-open transitions.
	breakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballotsim_breaker_trips_total",
			Help: "Total circuit breaker open transitions",
		},
	)

	// retriesTotal counts backoff retries across all operations.
	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballotsim_retries_total",
			Help: "Total retry attempts after transient errors",
		},
	)
)

func init() {
	prometheus.MustRegister(bucketTokens)
	prometheus.MustRegister(tokensAcquired)
	prometheus.MustRegister(breakerState)
	prometheus.MustRegister(breakerTrips)
	prometheus.MustRegister(retriesTotal)
}
