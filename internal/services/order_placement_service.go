package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

const (
	orderIDPrefix     = "ord_"
	orderLineIDPrefix = "oln_"

	defaultShippingMethod = "standard"
	placementMeterName    = "github.com/termitepreston/wigvana/internal/services"

	// recentCheckoutWindow bounds how long a completed cart is reported as a duplicate placement.
	recentCheckoutWindow = 10 * time.Minute
)

var errNoActiveCart = fmt.Errorf("%w: cart is empty", ErrBadRequest)

// OrderPlacementServiceDeps bundles collaborators required to place orders.
type OrderPlacementServiceDeps struct {
	Carts          repositories.CartRepository
	Orders         repositories.OrderRepository
	Catalog        repositories.CatalogReader
	Addresses      repositories.AddressRepository
	PaymentMethods repositories.PaymentMethodRepository
	Inventory      InventoryService
	UnitOfWork     repositories.UnitOfWork
	Events         OrderEventPublisher
	Pricing        PricingPolicy
	Meter          metric.Meter
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type orderPlacementService struct {
	carts      repositories.CartRepository
	orders     repositories.OrderRepository
	catalog    repositories.CatalogReader
	addresses  repositories.AddressRepository
	payments   repositories.PaymentMethodRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	events     eventPublisher
	pricing    PricingPolicy
	placed     metric.Int64Counter
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderPlacementService wires dependencies into an OrderPlacementService.
func NewOrderPlacementService(deps OrderPlacementServiceDeps) (OrderPlacementService, error) {
	switch {
	case deps.Carts == nil:
		return nil, errors.New("order placement: cart repository is required")
	case deps.Orders == nil:
		return nil, errors.New("order placement: order repository is required")
	case deps.Catalog == nil:
		return nil, errors.New("order placement: catalog reader is required")
	case deps.Addresses == nil:
		return nil, errors.New("order placement: address repository is required")
	case deps.PaymentMethods == nil:
		return nil, errors.New("order placement: payment method repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("order placement: inventory service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(placementMeterName)
	}
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Count of orders committed by the placement orchestrator"))
	if err != nil {
		return nil, err
	}

	return &orderPlacementService{
		carts:      deps.Carts,
		orders:     deps.Orders,
		catalog:    deps.Catalog,
		addresses:  deps.Addresses,
		payments:   deps.PaymentMethods,
		inventory:  deps.Inventory,
		unitOfWork: deps.UnitOfWork,
		events:     eventPublisher{events: deps.Events, logger: logger},
		pricing:    deps.Pricing,
		placed:     placed,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

// Place converts the buyer's cart into an order. Stock for every line is reserved as one
// all-or-nothing step; any failure commits nothing.
func (s *orderPlacementService) Place(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	buyerID := strings.TrimSpace(cmd.BuyerID)
	shippingID := strings.TrimSpace(cmd.ShippingAddressID)
	paymentID := strings.TrimSpace(cmd.PaymentMethodID)
	switch {
	case buyerID == "":
		return Order{}, badRequest("buyer id is required")
	case shippingID == "":
		return Order{}, badRequest("shipping address id is required")
	case paymentID == "":
		return Order{}, badRequest("payment method id is required")
	}
	billingID := strings.TrimSpace(cmd.BillingAddressID)
	if billingID == "" {
		billingID = shippingID
	}
	shippingMethod := strings.ToLower(strings.TrimSpace(cmd.ShippingMethod))
	if shippingMethod == "" {
		shippingMethod = defaultShippingMethod
	}

	shipping, err := s.addresses.Get(ctx, buyerID, shippingID)
	if err != nil {
		return Order{}, lookupError(err, "shipping address %s", shippingID)
	}
	billing := shipping
	if billingID != shippingID {
		billing, err = s.addresses.Get(ctx, buyerID, billingID)
		if err != nil {
			return Order{}, lookupError(err, "billing address %s", billingID)
		}
	}
	payment, err := s.payments.Get(ctx, buyerID, paymentID)
	if err != nil {
		return Order{}, lookupError(err, "payment method %s", paymentID)
	}

	var order Order
	err = s.runInTx(ctx, func(ctx context.Context) error {
		cart, err := s.resolveCart(ctx, buyerID, cmd.CartID)
		if err != nil {
			return err
		}
		if len(cart.Lines) == 0 {
			return badRequest("cart is empty")
		}

		currency := cart.Summary().Currency
		stock := make([]StockLine, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			if line.Currency != currency {
				return badRequest("cart mixes currencies %s and %s", currency, line.Currency)
			}
			variant, err := s.catalog.GetVariant(ctx, line.VariantID)
			if err != nil {
				return lookupError(err, "variant %s", line.VariantID)
			}
			if !variant.Purchasable() {
				return badRequest("variant %s is no longer available for purchase", line.VariantID)
			}
			stock = append(stock, StockLine{VariantID: line.VariantID, Quantity: line.Quantity})
		}

		if err := s.inventory.ReserveAll(ctx, stock); err != nil {
			return err
		}

		now := s.clock()
		order = s.buildOrder(cart, currency, now)
		order.BuyerID = buyerID
		order.ShippingAddress = shipping
		order.BillingAddress = billing
		order.PaymentMethod = payment.Summary()
		order.ShippingMethod = shippingMethod
		if err := s.orders.Insert(ctx, order); err != nil {
			return err
		}

		cart.Status = domain.CartStatusCompleted
		cart.UpdatedAt = now
		if _, err := s.carts.Update(ctx, cart); err != nil {
			return err
		}
		return nil
	})
	if errors.Is(err, errNoActiveCart) {
		if dup := s.recentCheckout(ctx, buyerID); dup != nil {
			err = dup
		}
	}
	if err != nil {
		mapped := translateRepoError(err)
		s.logger(ctx, "order.place.failed", map[string]any{"buyer": buyerID, "error": mapped})
		return Order{}, mapped
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("currency", order.Currency)))
	s.events.publish(ctx, OrderEvent{
		Type:       OrderEventPlaced,
		OrderID:    order.ID,
		CartID:     order.CartID,
		BuyerID:    order.BuyerID,
		SellerIDs:  append([]string(nil), order.SellerIDs...),
		Status:     string(order.Status),
		Amount:     order.Totals.Total,
		Currency:   order.Currency,
		OccurredAt: order.CreatedAt,
	})
	s.logger(ctx, "order.placed", map[string]any{
		"order": order.ID,
		"buyer": order.BuyerID,
		"lines": len(order.Lines),
		"total": order.Totals.Total,
	})
	return order, nil
}

// resolveCart returns the explicit cart when it belongs to the buyer, or the buyer's active cart.
func (s *orderPlacementService) resolveCart(ctx context.Context, buyerID, cartID string) (Cart, error) {
	owner := domain.UserOwner(buyerID)
	id := strings.TrimSpace(cartID)
	if id == "" {
		cart, err := s.carts.FindActiveByOwner(ctx, owner)
		if err != nil {
			if isRepoNotFound(err) {
				return Cart{}, errNoActiveCart
			}
			return Cart{}, err
		}
		return cart, nil
	}

	cart, err := s.carts.FindByID(ctx, id)
	if err != nil {
		return Cart{}, lookupError(err, "cart %s", id)
	}
	if cart.Owner.Key() != owner.Key() {
		return Cart{}, notFound("cart %s", id)
	}
	if !cart.IsActive() {
		return Cart{}, conflict("cart %s is %s", id, cart.Status)
	}
	return cart, nil
}

// recentCheckout reports a conflict when the buyer's latest order came from a cart completed within
// recentCheckoutWindow, so a racing second placement is told the cart was already checked out.
func (s *orderPlacementService) recentCheckout(ctx context.Context, buyerID string) error {
	latest, err := s.orders.List(ctx, repositories.OrderListFilter{
		BuyerID:    buyerID,
		Pagination: domain.Pagination{Page: 1, Limit: 1},
	})
	if err != nil || len(latest.Items) == 0 {
		return nil
	}
	order := latest.Items[0]
	if order.CartID == "" {
		return nil
	}
	cart, err := s.carts.FindByID(ctx, order.CartID)
	if err != nil || cart.Status != domain.CartStatusCompleted {
		return nil
	}
	if s.clock().Sub(cart.UpdatedAt) > recentCheckoutWindow {
		return nil
	}
	return conflict("cart %s was already checked out as order %s", cart.ID, order.ID)
}

func (s *orderPlacementService) buildOrder(cart Cart, currency string, now time.Time) Order {
	lines := make([]OrderLine, 0, len(cart.Lines))
	lineTotals := make([]int64, 0, len(cart.Lines))
	sellers := make([]string, 0)
	seen := make(map[string]struct{})
	for _, line := range cart.Lines {
		total := line.LineTotal()
		lines = append(lines, OrderLine{
			ID:        orderLineIDPrefix + s.newID(),
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SellerID:  line.SellerID,
			Title:     line.Title,
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: total,
			Status:    domain.LineStatusProcessing,
			UpdatedAt: now,
		})
		lineTotals = append(lineTotals, total)
		if _, ok := seen[line.SellerID]; !ok && line.SellerID != "" {
			seen[line.SellerID] = struct{}{}
			sellers = append(sellers, line.SellerID)
		}
	}

	breakdown := s.pricing.Price(currency, lineTotals)
	return Order{
		ID:            orderIDPrefix + s.newID(),
		CartID:        cart.ID,
		Status:        domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusAuthorized,
		Currency:      currency,
		Totals: OrderTotals{
			Subtotal: breakdown.Subtotal,
			Tax:      breakdown.Tax,
			Shipping: breakdown.Shipping,
			Total:    breakdown.Total,
		},
		Lines:     lines,
		SellerIDs: sellers,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *orderPlacementService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

// lookupError reports a missing or foreign reference as NotFound.
func lookupError(err error, format string, args ...any) error {
	if isRepoNotFound(err) {
		return notFound(format, args...)
	}
	return err
}
