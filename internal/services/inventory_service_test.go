package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories/memory"
)

func newInventoryFixture(t *testing.T) (*memory.Store, InventoryService) {
	t.Helper()
	store := memory.NewStore()
	store.PutVariant(domain.CatalogVariant{VariantID: "var-a", ProductStatus: domain.ProductStatusPublished, VariantActive: true, Stock: 4})
	store.PutVariant(domain.CatalogVariant{VariantID: "var-b", ProductStatus: domain.ProductStatusPublished, VariantActive: true, Stock: 1})
	svc, err := NewInventoryService(InventoryServiceDeps{Ledger: store.Inventory()})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}
	return store, svc
}

func TestNewInventoryServiceRequiresLedger(t *testing.T) {
	if _, err := NewInventoryService(InventoryServiceDeps{}); err == nil {
		t.Fatalf("expected error without ledger")
	}
}

func TestInventoryServiceReserveAllMergesDuplicates(t *testing.T) {
	store, svc := newInventoryFixture(t)
	ctx := context.Background()

	err := svc.ReserveAll(ctx, []StockLine{
		{VariantID: "var-a", Quantity: 1},
		{VariantID: "var-a", Quantity: 2},
		{VariantID: "var-b", Quantity: 0},
	})
	if err != nil {
		t.Fatalf("ReserveAll: %v", err)
	}
	if store.Stock("var-a") != 1 || store.Stock("var-b") != 1 {
		t.Fatalf("unexpected stock a=%d b=%d", store.Stock("var-a"), store.Stock("var-b"))
	}

	if err := svc.ReleaseAll(ctx, []StockLine{{VariantID: "var-a", Quantity: 3}}); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if store.Stock("var-a") != 4 {
		t.Fatalf("expected stock restored to 4, got %d", store.Stock("var-a"))
	}

	if err := svc.ReserveAll(ctx, nil); err != nil {
		t.Fatalf("empty reservation must succeed: %v", err)
	}
}

func TestInventoryServiceReserveAllIsAllOrNothing(t *testing.T) {
	store, svc := newInventoryFixture(t)

	err := svc.ReserveAll(context.Background(), []StockLine{
		{VariantID: "var-a", Quantity: 2},
		{VariantID: "var-b", Quantity: 2},
	})
	var short *InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(short.Shortfalls) != 1 || short.Shortfalls[0] != (StockShortfall{VariantID: "var-b", Requested: 2, Available: 1}) {
		t.Fatalf("unexpected shortfalls %#v", short.Shortfalls)
	}
	if store.Stock("var-a") != 4 {
		t.Fatalf("partial reservation leaked: %d", store.Stock("var-a"))
	}
}

func TestInventoryServiceValidation(t *testing.T) {
	_, svc := newInventoryFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		lines  []StockLine
		target error
	}{
		{name: "negative quantity", lines: []StockLine{{VariantID: "var-a", Quantity: -1}}, target: ErrBadRequest},
		{name: "unknown variant", lines: []StockLine{{VariantID: "var-x", Quantity: 1}}, target: ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectErr(t, svc.ReserveAll(ctx, tc.lines), tc.target)
		})
	}
}

func TestInventoryServiceCheckAvailable(t *testing.T) {
	store, svc := newInventoryFixture(t)
	ctx := context.Background()

	if err := svc.CheckAvailable(ctx, []StockLine{{VariantID: "var-a", Quantity: 4}}); err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
	err := svc.CheckAvailable(ctx, []StockLine{{VariantID: "var-a", Quantity: 3}, {VariantID: "var-a", Quantity: 2}})
	expectErr(t, err, ErrInsufficientStock)
	if store.Stock("var-a") != 4 {
		t.Fatalf("check must not reserve stock")
	}

	available, err := svc.Available(ctx, []string{"var-a", " var-a", "var-b", ""})
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if len(available) != 2 || available["var-a"] != 4 || available["var-b"] != 1 {
		t.Fatalf("unexpected availability %#v", available)
	}
}
