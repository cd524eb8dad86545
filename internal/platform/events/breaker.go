package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/termitepreston/wigvana/internal/services"
)

// ErrPublisherUnavailable is returned while the breaker is open and publishes are short-circuited.
var ErrPublisherUnavailable = errors.New("events: publisher unavailable")

// BreakerSettings configures the circuit breaker around a publisher.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
	Timeout     time.Duration
	Logger      *zap.Logger
}

// Publisher is implemented by every transport in this package.
type Publisher interface {
	services.OrderEventPublisher
	Close() error
}

// BreakerPublisher stops calling a failing broker after consecutive errors and bounds every publish
// with a timeout so a slow broker cannot hold requests that already committed.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
}

// NewBreakerPublisher wraps next with a gobreaker circuit breaker.
func NewBreakerPublisher(next Publisher, settings BreakerSettings) (*BreakerPublisher, error) {
	if next == nil {
		return nil, errors.New("events: breaker requires publisher")
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	if settings.Name == "" {
		settings.Name = "order-events"
	}
	logger := settings.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := settings.MaxFailures

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event publisher breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerPublisher{next: next, breaker: cb, timeout: settings.Timeout}, nil
}

// PublishOrderEvent publishes through the breaker.
func (p *BreakerPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		publishCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			publishCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		return struct{}{}, p.next.PublishOrderEvent(publishCtx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
	}
	return err
}

// State reports the breaker state for health reporting.
func (p *BreakerPublisher) State() string {
	return p.breaker.State().String()
}

// Close closes the wrapped publisher.
func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}
