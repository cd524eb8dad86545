package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/termitepreston/wigvana/internal/services"
)

func TestPubSubPublisherPublishesOrderEvent(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}
	defer publisher.Close()
	publisher.clock = func() time.Time { return time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC) }

	event := services.OrderEvent{
		Type:      services.OrderEventPlaced,
		OrderID:   "ord-1",
		BuyerID:   "buyer-1",
		SellerIDs: []string{"seller-1", "seller-2"},
		Status:    "processing",
		Amount:    21900,
		Currency:  "USD",
	}
	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ID == "" {
		t.Fatalf("expected generated event id")
	}
	if payload.OrderID != "ord-1" || payload.Amount != 21900 || payload.Type != services.OrderEventPlaced {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occurred_at %s", payload.OccurredAt)
	}
	attrs := messages[0].Attributes
	if attrs["eventType"] != "order.placed" || attrs["sellerIds"] != "seller-1,seller-2" {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
	if _, ok := attrs["cartId"]; ok {
		t.Fatalf("empty cart id should not be published as attribute")
	}
	if messages[0].OrderingKey != "ord-1" {
		t.Fatalf("expected ordering key ord-1, got %q", messages[0].OrderingKey)
	}
}

func TestNewPubSubPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
