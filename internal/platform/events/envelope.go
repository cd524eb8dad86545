package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/termitepreston/wigvana/internal/services"
)

// prepare assigns an event id and timestamp when the producer left them empty.
func prepare(event services.OrderEvent, now func() time.Time) services.OrderEvent {
	if strings.TrimSpace(event.ID) == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		event.OccurredAt = now().UTC()
	}
	return event
}

func encode(event services.OrderEvent) ([]byte, error) {
	return json.Marshal(event)
}

// attributes returns the routing metadata shared by every transport.
func attributes(event services.OrderEvent) map[string]string {
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "eventType", string(event.Type))
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "cartId", event.CartID)
	setAttr(attrs, "buyerId", event.BuyerID)
	if len(event.SellerIDs) > 0 {
		attrs["sellerIds"] = strings.Join(event.SellerIDs, ",")
	}
	return attrs
}

// partitionKey keeps every event for one order on the same partition.
func partitionKey(event services.OrderEvent) string {
	if event.OrderID != "" {
		return event.OrderID
	}
	if event.CartID != "" {
		return event.CartID
	}
	return event.ID
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
