// Package memory provides in-process repository implementations used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

type txKey struct{ store *Store }

// Store keeps every aggregate behind a single mutex. RunInTx holds the mutex for the whole
// callback and restores a snapshot when the callback fails.
type Store struct {
	mu sync.Mutex

	carts        map[string]domain.Cart
	activeCarts  map[string]string
	orders       map[string]domain.Order
	variants     map[string]domain.CatalogVariant
	addresses    map[string]domain.Address
	paymentMeths map[string]domain.PaymentMethod
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		carts:        make(map[string]domain.Cart),
		activeCarts:  make(map[string]string),
		orders:       make(map[string]domain.Order),
		variants:     make(map[string]domain.CatalogVariant),
		addresses:    make(map[string]domain.Address),
		paymentMeths: make(map[string]domain.PaymentMethod),
	}
}

var _ repositories.Registry = (*Store)(nil)

// Close is a no-op for the in-memory store.
func (s *Store) Close(context.Context) error { return nil }

// Carts returns the cart repository view of the store.
func (s *Store) Carts() repositories.CartRepository { return cartRepository{s} }

// Orders returns the order repository view of the store.
func (s *Store) Orders() repositories.OrderRepository { return orderRepository{s} }

// Inventory returns the inventory ledger view of the store.
func (s *Store) Inventory() repositories.InventoryLedger { return inventoryLedger{s} }

// Catalog returns the catalog read port view of the store.
func (s *Store) Catalog() repositories.CatalogReader { return catalogReader{s} }

// Addresses returns the address repository view of the store.
func (s *Store) Addresses() repositories.AddressRepository { return addressRepository{s} }

// PaymentMethods returns the payment method repository view of the store.
func (s *Store) PaymentMethods() repositories.PaymentMethodRepository {
	return paymentMethodRepository{s}
}

// Health reports the in-memory backend as always ready.
func (s *Store) Health() repositories.HealthRepository {
	repo, _ := repositories.NewProbeHealthRepository([]repositories.Probe{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}})
	return repo
}

// RunInTx serialises fn against every other store operation and rolls back on error.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("memory store: transaction function is nil")
	}
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("memory store: transaction panicked: %v", rec)
			}
		}()
		return fn(context.WithValue(ctx, txKey{s}, true))
	}()
	if err != nil {
		s.restore(snapshot)
	}
	return err
}

// PutVariant seeds or replaces a catalog variant including its stock.
func (s *Store) PutVariant(variant domain.CatalogVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[variant.VariantID] = cloneVariant(variant)
}

// PutAddress seeds or replaces a buyer address.
func (s *Store) PutAddress(addr domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[addr.ID] = addr
}

// PutPaymentMethod seeds or replaces a buyer payment method.
func (s *Store) PutPaymentMethod(method domain.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMeths[method.ID] = method
}

// Stock returns the current stock of a variant, or -1 when unknown.
func (s *Store) Stock(variantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	variant, ok := s.variants[variantID]
	if !ok {
		return -1
	}
	return variant.Stock
}

func (s *Store) inTx(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(txKey{s}).(bool)
	return v
}

// lock acquires the store mutex unless ctx already runs inside RunInTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type storeSnapshot struct {
	carts       map[string]domain.Cart
	activeCarts map[string]string
	orders      map[string]domain.Order
	stock       map[string]int
}

func (s *Store) snapshot() storeSnapshot {
	snap := storeSnapshot{
		carts:       make(map[string]domain.Cart, len(s.carts)),
		activeCarts: make(map[string]string, len(s.activeCarts)),
		orders:      make(map[string]domain.Order, len(s.orders)),
		stock:       make(map[string]int, len(s.variants)),
	}
	for id, cart := range s.carts {
		snap.carts[id] = cart.Clone()
	}
	for key, id := range s.activeCarts {
		snap.activeCarts[key] = id
	}
	for id, order := range s.orders {
		snap.orders[id] = order.Clone()
	}
	for id, variant := range s.variants {
		snap.stock[id] = variant.Stock
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.carts = snap.carts
	s.activeCarts = snap.activeCarts
	s.orders = snap.orders
	for id, stock := range snap.stock {
		variant := s.variants[id]
		variant.Stock = stock
		s.variants[id] = variant
	}
}

func cloneVariant(v domain.CatalogVariant) domain.CatalogVariant {
	dup := v
	if v.Attributes != nil {
		dup.Attributes = make(map[string]string, len(v.Attributes))
		for k, val := range v.Attributes {
			dup.Attributes[k] = val
		}
	}
	return dup
}

func sortOrdersNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
