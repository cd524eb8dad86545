package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/termitepreston/wigvana/internal/platform/firestore"
	"github.com/termitepreston/wigvana/internal/repositories"
)

// Registry wires every Firestore repository around one shared provider. Transactions opened via
// RunInTx are visible to all of them.
type Registry struct {
	provider *pfirestore.Provider
	carts    *CartRepository
	orders   *OrderRepository
	ledger   *InventoryLedger
	catalog  *CatalogReader
	addrs    *AddressRepository
	payments *PaymentMethodRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the Firestore repository registry.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	ledger, err := NewInventoryLedger(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogReader(provider)
	if err != nil {
		return nil, err
	}
	addrs, err := NewAddressRepository(provider)
	if err != nil {
		return nil, err
	}
	payments, err := NewPaymentMethodRepository(provider)
	if err != nil {
		return nil, err
	}

	health, err := repositories.NewProbeHealthRepository([]repositories.Probe{
		{Name: "firestore", Timeout: 2 * time.Second, Check: provider.Ping},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		carts:    carts,
		orders:   orders,
		ledger:   ledger,
		catalog:  catalog,
		addrs:    addrs,
		payments: payments,
		health:   health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Inventory() repositories.InventoryLedger { return r.ledger }

func (r *Registry) Catalog() repositories.CatalogReader { return r.catalog }

func (r *Registry) Addresses() repositories.AddressRepository { return r.addrs }

func (r *Registry) PaymentMethods() repositories.PaymentMethodRepository { return r.payments }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx opens a Firestore transaction shared by every repository in the registry.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}
