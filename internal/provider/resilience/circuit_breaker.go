// Package resilience wraps outbound feed calls with retries, timeouts and a
// circuit breaker, and keeps a health registry of the upstream providers.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a provider's circuit breaker.
type BreakerConfig struct {
	Name string

	// HalfOpenRequests is how many calls may pass while half-open.
	HalfOpenRequests uint32

	// CountWindow clears the closed-state counters periodically. Zero keeps
	// them until the next state change.
	CountWindow time.Duration

	// OpenFor is how long the breaker stays open before probing.
	OpenFor time.Duration

	// Trip decides when a closed breaker opens. Nil means ShouldTrip.
	Trip func(gobreaker.Counts) bool

	// Logger receives state transitions.
	Logger zerolog.Logger
}

// DefaultBreakerConfig returns the breaker used for frame feeds. Feeds are
// polled every few minutes, so a short open period is enough.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:           name,
		HalfOpenRequests: 1,
		OpenFor:        30 * time.Second,
		Trip:           ShouldTrip,
	}
}

// ShouldTrip opens the breaker after three consecutive failures, or once
// five or more calls have failed at least half the time.
func ShouldTrip(c gobreaker.Counts) bool {
	switch {
	case c.ConsecutiveFailures >= 3:
		return true
	case c.Requests < 5:
		return false
	default:
		return c.TotalFailures*2 >= c.Requests
	}
}

func newBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	trip := cfg.Trip
	if trip == nil {
		trip = ShouldTrip
	}
	log := cfg.Logger
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.CountWindow,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: trip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}
