package services

import (
	"context"
	"time"
)

// OrderEventType names a domain event emitted after a successful commit.
type OrderEventType string

const (
	OrderEventPlaced          OrderEventType = "order.placed"
	OrderEventCancelled       OrderEventType = "order.cancelled"
	OrderEventStatusChanged   OrderEventType = "order.status_changed"
	OrderEventRefunded        OrderEventType = "order.refunded"
	OrderEventReturnRequested OrderEventType = "order.return_requested"
	OrderEventReturnResolved  OrderEventType = "order.return_resolved"
	OrderEventCartMerged      OrderEventType = "cart.merged"
)

// OrderEventPublisher publishes order and cart domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent is the payload shared by every event transport.
type OrderEvent struct {
	ID             string         `json:"id"`
	Type           OrderEventType `json:"type"`
	OrderID        string         `json:"order_id,omitempty"`
	CartID         string         `json:"cart_id,omitempty"`
	BuyerID        string         `json:"buyer_id,omitempty"`
	SellerIDs      []string       `json:"seller_ids,omitempty"`
	ActorID        string         `json:"actor_id,omitempty"`
	ActorRole      string         `json:"actor_role,omitempty"`
	PreviousStatus string         `json:"previous_status,omitempty"`
	Status         string         `json:"status,omitempty"`
	Amount         int64          `json:"amount,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type eventPublisher struct {
	events OrderEventPublisher
	logger func(context.Context, string, map[string]any)
}

// publish runs after commit; failures are logged and never surface to the caller.
func (p eventPublisher) publish(ctx context.Context, event OrderEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishOrderEvent(ctx, event); err != nil {
		p.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   string(event.Type),
			"order":  event.OrderID,
			"cart":   event.CartID,
			"status": event.Status,
			"error":  err,
		})
	}
}
