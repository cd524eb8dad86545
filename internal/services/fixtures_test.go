package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories/memory"
)

const (
	testBuyer   = "buyer-1"
	testSellerA = "seller-a"
	testSellerB = "seller-b"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OrderEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return OrderEvent{}
	}
	return p.events[len(p.events)-1]
}

type fixture struct {
	store     *memory.Store
	events    *recordingPublisher
	inventory InventoryService
	carts     CartService
	placement OrderPlacementService
	orders    OrderService
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	var seq atomic.Int64
	idGen := func() string { return fmt.Sprintf("%04d", seq.Add(1)) }
	clock := func() time.Time { return now }

	store.PutVariant(domain.CatalogVariant{
		ProductID: "prod-a", VariantID: "var-a", SellerID: testSellerA, Title: "Body Wave Wig", SKU: "BW-18",
		Price: 10000, Currency: "USD", ProductStatus: domain.ProductStatusPublished, VariantActive: true, Stock: 10,
	})
	store.PutVariant(domain.CatalogVariant{
		ProductID: "prod-b", VariantID: "var-b", SellerID: testSellerB, Title: "Edge Brush", SKU: "EB-1",
		Price: 2500, Currency: "USD", ProductStatus: domain.ProductStatusApproved, VariantActive: true, Stock: 3,
	})
	store.PutVariant(domain.CatalogVariant{
		ProductID: "prod-draft", VariantID: "var-draft", SellerID: testSellerB, Title: "Draft", SKU: "DR-1",
		Price: 100, Currency: "USD", ProductStatus: domain.ProductStatusDraft, VariantActive: true, Stock: 5,
	})
	store.PutVariant(domain.CatalogVariant{
		ProductID: "prod-eur", VariantID: "var-eur", SellerID: testSellerA, Title: "Euro Cap", SKU: "EC-1",
		Price: 900, Currency: "EUR", ProductStatus: domain.ProductStatusPublished, VariantActive: true, Stock: 5,
	})
	store.PutAddress(domain.Address{ID: "addr-1", UserID: testBuyer, Line1: "1 Main St", City: "Springfield", Country: "US"})
	store.PutAddress(domain.Address{ID: "addr-2", UserID: testBuyer, Line1: "9 Billing Rd", City: "Springfield", Country: "US"})
	store.PutAddress(domain.Address{ID: "addr-other", UserID: "buyer-2", Line1: "2 Elm St", Country: "US"})
	store.PutPaymentMethod(domain.PaymentMethod{ID: "pm-1", UserID: testBuyer, Provider: "simulated", Brand: "visa", Last4: "4242"})
	store.PutPaymentMethod(domain.PaymentMethod{ID: "pm-2", UserID: "buyer-2", Provider: "simulated", Brand: "amex", Last4: "0005"})

	events := &recordingPublisher{}
	inventory, err := NewInventoryService(InventoryServiceDeps{Ledger: store.Inventory()})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}
	carts, err := NewCartService(CartServiceDeps{
		Carts:       store.Carts(),
		Catalog:     store.Catalog(),
		Inventory:   inventory,
		UnitOfWork:  store,
		Events:      events,
		Clock:       clock,
		IDGenerator: idGen,
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	placement, err := NewOrderPlacementService(OrderPlacementServiceDeps{
		Carts:          store.Carts(),
		Orders:         store.Orders(),
		Catalog:        store.Catalog(),
		Addresses:      store.Addresses(),
		PaymentMethods: store.PaymentMethods(),
		Inventory:      inventory,
		UnitOfWork:     store,
		Events:         events,
		Pricing:        PricingPolicy{TaxRateBasisPoints: 700, FlatShipping: 500},
		Clock:          clock,
		IDGenerator:    idGen,
	})
	if err != nil {
		t.Fatalf("NewOrderPlacementService: %v", err)
	}
	orders, err := NewOrderService(OrderServiceDeps{
		Orders:      store.Orders(),
		Inventory:   inventory,
		UnitOfWork:  store,
		Events:      events,
		Clock:       clock,
		IDGenerator: idGen,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	return &fixture{
		store:     store,
		events:    events,
		inventory: inventory,
		carts:     carts,
		placement: placement,
		orders:    orders,
		now:       now,
	}
}

func (f *fixture) addToBuyerCart(t *testing.T, variantID string, quantity int) Cart {
	t.Helper()
	cart, err := f.carts.AddLine(context.Background(), AddCartLineCommand{
		Owner:     domain.UserOwner(testBuyer),
		VariantID: variantID,
		Quantity:  quantity,
	})
	if err != nil {
		t.Fatalf("AddLine(%s, %d): %v", variantID, quantity, err)
	}
	return cart
}

func (f *fixture) placeOrder(t *testing.T, lines map[string]int) Order {
	t.Helper()
	for variantID, qty := range lines {
		f.addToBuyerCart(t, variantID, qty)
	}
	order, err := f.placement.Place(context.Background(), PlaceOrderCommand{
		BuyerID:           testBuyer,
		ShippingAddressID: "addr-1",
		PaymentMethodID:   "pm-1",
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	return order
}

func expectErr(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func lineFor(t *testing.T, order Order, variantID string) OrderLine {
	t.Helper()
	for _, line := range order.Lines {
		if line.VariantID == variantID {
			return line
		}
	}
	t.Fatalf("order %s has no line for %s", order.ID, variantID)
	return OrderLine{}
}
