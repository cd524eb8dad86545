package repositories

import (
	"context"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Orders() OrderRepository
	Inventory() InventoryLedger
	Catalog() CatalogReader
	Addresses() AddressRepository
	PaymentMethods() PaymentMethodRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. Repository calls made
// with the context passed to fn join the transaction; a returned error discards every write.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository persists carts together with their lines.
type CartRepository interface {
	Insert(ctx context.Context, cart domain.Cart) error
	// Update persists the cart when the stored version equals cart.Version and bumps the version.
	Update(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	FindByID(ctx context.Context, cartID string) (domain.Cart, error)
	// FindActiveByOwner returns the single active cart of the owner.
	FindActiveByOwner(ctx context.Context, owner domain.CartOwner) (domain.Cart, error)
}

// OrderRepository persists orders. Orders are never deleted.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	// Update persists the order when the stored version equals order.Version and bumps the version.
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
}

// InventoryLedger is the only writer of variant stock.
type InventoryLedger interface {
	// Reserve decrements every line atomically, all or nothing. Failures due to stock are
	// reported as *InventoryError with code InventoryErrorInsufficientStock and the shortfalls.
	Reserve(ctx context.Context, lines []domain.StockLine) error
	// Release adds the quantities back unconditionally.
	Release(ctx context.Context, lines []domain.StockLine) error
	// Available returns current stock per variant without reserving it.
	Available(ctx context.Context, variantIDs []string) (map[string]int, error)
}

// CatalogReader is the read-only port into the product catalog.
type CatalogReader interface {
	GetVariant(ctx context.Context, variantID string) (domain.CatalogVariant, error)
}

// AddressRepository resolves stored buyer addresses.
type AddressRepository interface {
	Get(ctx context.Context, userID string, addressID string) (domain.Address, error)
}

// PaymentMethodRepository resolves stored buyer payment methods.
type PaymentMethodRepository interface {
	Get(ctx context.Context, userID string, paymentMethodID string) (domain.PaymentMethod, error)
}

// OrderListFilter narrows order listings. BuyerID and SellerID are optional and combinable.
type OrderListFilter struct {
	BuyerID    string
	SellerID   string
	Statuses   []domain.OrderStatus
	Pagination domain.Pagination
}
