package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ashureev/lunchbot/internal/metrics"
)

// Breaker wraps a Provider so repeated upstream failures stop costing
// request latency until the upstream recovers.
type Breaker struct {
	provider Provider
	cb       *gobreaker.CircuitBreaker[Report]
}

// NewBreaker wraps p. The circuit opens after three consecutive failures
// and probes again after openFor.
func NewBreaker(p Provider, openFor time.Duration) *Breaker {
	name := p.Name()
	metrics.WeatherBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[Report](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("Weather breaker state change",
				"provider", name,
				"from", from.String(),
				"to", to.String())
			metrics.WeatherBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Breaker{provider: p, cb: cb}
}

// Name returns the wrapped provider's name.
func (b *Breaker) Name() string { return b.provider.Name() }

// Fetch calls the wrapped provider unless the circuit is open.
func (b *Breaker) Fetch(ctx context.Context) (Report, error) {
	return b.cb.Execute(func() (Report, error) {
		return b.provider.Fetch(ctx)
	})
}

// State reports the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// IsRejected reports whether err came from an open or saturated circuit.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
