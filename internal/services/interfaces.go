package services

import (
	"context"
	"time"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination           = domain.Pagination
	Cart                 = domain.Cart
	CartLine             = domain.CartLine
	CartOwner            = domain.CartOwner
	CartSummary          = domain.CartSummary
	Order                = domain.Order
	OrderLine            = domain.OrderLine
	OrderStatus          = domain.OrderStatus
	OrderTotals          = domain.OrderTotals
	ReturnRequest        = domain.ReturnRequest
	StockLine            = domain.StockLine
	StockShortfall       = domain.StockShortfall
	CatalogVariant       = domain.CatalogVariant
	PricingPolicy        = domain.PricingPolicy
	HealthReport         = domain.HealthReport
	Address              = domain.Address
	PaymentMethodSummary = domain.PaymentMethodSummary
)

// InventoryService is the single chokepoint for stock mutations.
type InventoryService interface {
	// ReserveAll decrements every line or none of them.
	ReserveAll(ctx context.Context, lines []StockLine) error
	ReleaseAll(ctx context.Context, lines []StockLine) error
	// CheckAvailable fails with *InsufficientStockError when a requested quantity exceeds stock.
	// It never reserves.
	CheckAvailable(ctx context.Context, lines []StockLine) error
	Available(ctx context.Context, variantIDs []string) (map[string]int, error)
}

// CartService manages anonymous and authenticated carts.
type CartService interface {
	GetOrCreate(ctx context.Context, owner CartOwner) (Cart, error)
	// Get returns the cart only when it is active and belongs to owner.
	Get(ctx context.Context, owner CartOwner, cartID string) (Cart, error)
	AddLine(ctx context.Context, cmd AddCartLineCommand) (Cart, error)
	SetLineQuantity(ctx context.Context, cmd UpdateCartLineCommand) (Cart, error)
	RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error)
	Clear(ctx context.Context, owner CartOwner, cartID string) (Cart, error)
	MergeAnonymous(ctx context.Context, cmd MergeCartCommand) (CartMergeResult, error)
}

// OrderPlacementService turns a cart into an order.
type OrderPlacementService interface {
	Place(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
}

// OrderService drives role-scoped reads and status transitions of existing orders.
type OrderService interface {
	ListBuyerOrders(ctx context.Context, buyerID string, filter OrderListFilter) (domain.Page[Order], error)
	GetBuyerOrder(ctx context.Context, buyerID string, orderID string) (Order, error)
	ListSellerOrders(ctx context.Context, sellerID string, filter OrderListFilter) (domain.Page[Order], error)
	GetSellerOrder(ctx context.Context, sellerID string, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error)
	GetOrder(ctx context.Context, orderID string) (Order, error)

	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	SellerTransition(ctx context.Context, cmd SellerTransitionCommand) (Order, error)
	AdminTransition(ctx context.Context, cmd AdminTransitionCommand) (Order, error)
	Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error)
	RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error)
	ResolveReturn(ctx context.Context, cmd ResolveReturnCommand) (Order, error)
}

// SystemService exposes health and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// AddCartLineCommand adds a variant to the owner's cart. An empty CartID targets the owner's
// active cart, creating it when absent.
type AddCartLineCommand struct {
	Owner     CartOwner
	CartID    string
	VariantID string
	Quantity  int
}

// UpdateCartLineCommand sets the exact quantity of an existing line.
type UpdateCartLineCommand struct {
	Owner    CartOwner
	CartID   string
	LineID   string
	Quantity int
}

// RemoveCartLineCommand deletes a line from the cart.
type RemoveCartLineCommand struct {
	Owner  CartOwner
	CartID string
	LineID string
}

// MergeCartCommand folds an anonymous cart into the user's active cart.
type MergeCartCommand struct {
	UserID      string
	AnonymousID string
	CartID      string
}

// CartMergeAdjustment describes an anonymous line that was capped or dropped during a merge.
type CartMergeAdjustment struct {
	VariantID string
	Requested int
	Applied   int
	Reason    string
}

// CartMergeResult is the merged cart with any quantity adjustments applied along the way.
type CartMergeResult struct {
	Cart        Cart
	Adjustments []CartMergeAdjustment
}

// PlaceOrderCommand carries checkout inputs. CartID and BillingAddressID are optional.
type PlaceOrderCommand struct {
	BuyerID           string
	CartID            string
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethodID   string
	ShippingMethod    string
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Statuses   []OrderStatus
	Pagination Pagination
}

// CancelOrderCommand is a buyer cancellation.
type CancelOrderCommand struct {
	BuyerID string
	OrderID string
	Reason  string
}

// SellerTransitionCommand moves the seller's lines of an order to a new status.
type SellerTransitionCommand struct {
	SellerID       string
	OrderID        string
	Status         OrderStatus
	TrackingNumber string
	Carrier        string
	Note           string
}

// AdminTransitionCommand overrides an order's status.
type AdminTransitionCommand struct {
	ActorID        string
	OrderID        string
	Status         OrderStatus
	TrackingNumber string
	Carrier        string
	Note           string
}

// RefundOrderCommand records a refund. LineIDs optionally mark specific lines as refunded.
type RefundOrderCommand struct {
	ActorID string
	OrderID string
	Amount  int64
	Reason  string
	LineIDs []string
}

// RequestReturnCommand is a buyer return request for a single line.
type RequestReturnCommand struct {
	BuyerID  string
	OrderID  string
	LineID   string
	Quantity int
	Reason   string
}

// ReturnDecision is an administrator verdict on a return request.
type ReturnDecision string

const (
	ReturnDecisionApprove ReturnDecision = "approve"
	ReturnDecisionReject  ReturnDecision = "reject"
)

// ResolveReturnCommand approves or rejects a pending return request.
type ResolveReturnCommand struct {
	ActorID  string
	OrderID  string
	ReturnID string
	Decision ReturnDecision
	Note     string
}

// SystemHealthReport extends the dependency report with build metadata.
type SystemHealthReport struct {
	HealthReport
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
}
