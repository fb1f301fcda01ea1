package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// BreakerGateway fails fast while the provider is unreachable. Declines and
// rejected requests prove the provider is up and never trip it.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*Authorization]
}

func NewBreakerGateway(next Gateway, s BreakerSettings, log *slog.Logger) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker[*Authorization](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: isProviderHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (g *BreakerGateway) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	auth, err := g.cb.Execute(func() (*Authorization, error) {
		return g.next.CreateAuthorization(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ProviderError{Message: "payment provider temporarily unavailable", Err: err}
	}
	return auth, err
}

func isProviderHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidAmount) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code != ""
}
