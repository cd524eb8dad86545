package memory

import (
	"context"
	"fmt"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

type inventoryLedger struct{ s *Store }

func (l inventoryLedger) Reserve(ctx context.Context, lines []domain.StockLine) error {
	normalized, err := repositories.NormalizeStockLines("inventory.reserve", lines)
	if err != nil {
		return err
	}
	defer l.s.lock(ctx)()

	var shortfalls []domain.StockShortfall
	for _, line := range normalized {
		variant, ok := l.s.variants[line.VariantID]
		if !ok {
			return &repositories.InventoryError{
				Op:      "inventory.reserve",
				Code:    repositories.InventoryErrorStockNotFound,
				Message: fmt.Sprintf("variant %s not found", line.VariantID),
			}
		}
		if variant.Stock < line.Quantity {
			shortfalls = append(shortfalls, domain.StockShortfall{
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: variant.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return repositories.NewInsufficientStockError("inventory.reserve", shortfalls)
	}

	for _, line := range normalized {
		variant := l.s.variants[line.VariantID]
		variant.Stock -= line.Quantity
		l.s.variants[line.VariantID] = variant
	}
	return nil
}

func (l inventoryLedger) Release(ctx context.Context, lines []domain.StockLine) error {
	normalized, err := repositories.NormalizeStockLines("inventory.release", lines)
	if err != nil {
		return err
	}
	defer l.s.lock(ctx)()

	for _, line := range normalized {
		if _, ok := l.s.variants[line.VariantID]; !ok {
			return &repositories.InventoryError{
				Op:      "inventory.release",
				Code:    repositories.InventoryErrorStockNotFound,
				Message: fmt.Sprintf("variant %s not found", line.VariantID),
			}
		}
	}
	for _, line := range normalized {
		variant := l.s.variants[line.VariantID]
		variant.Stock += line.Quantity
		l.s.variants[line.VariantID] = variant
	}
	return nil
}

func (l inventoryLedger) Available(ctx context.Context, variantIDs []string) (map[string]int, error) {
	defer l.s.lock(ctx)()

	result := make(map[string]int, len(variantIDs))
	for _, id := range variantIDs {
		variant, ok := l.s.variants[id]
		if !ok {
			return nil, &repositories.InventoryError{
				Op:      "inventory.available",
				Code:    repositories.InventoryErrorStockNotFound,
				Message: fmt.Sprintf("variant %s not found", id),
			}
		}
		result[id] = variant.Stock
	}
	return result, nil
}
