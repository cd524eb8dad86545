package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/termitepreston/wigvana/internal/services"
)

// LogPublisher records order events in the structured log. Used for local runs without a broker.
type LogPublisher struct {
	logger *zap.Logger
	clock  func() time.Time
}

// NewLogPublisher constructs a log-only publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger, clock: time.Now}
}

// PublishOrderEvent logs the event at info level.
func (p *LogPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	event = prepare(event, p.clock)
	p.logger.Info("order event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", event.OrderID),
		zap.String("cart_id", event.CartID),
		zap.String("buyer_id", event.BuyerID),
		zap.Strings("seller_ids", event.SellerIDs),
		zap.String("status", event.Status),
		zap.Int64("amount", event.Amount),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// Close implements io.Closer.
func (p *LogPublisher) Close() error { return nil }
