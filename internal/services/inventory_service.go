package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Ledger repositories.InventoryLedger
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	ledger repositories.InventoryLedger
	logger func(context.Context, string, map[string]any)
}

// NewInventoryService wires the ledger into an InventoryService.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Ledger == nil {
		return nil, errors.New("inventory service: ledger is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &inventoryService{ledger: deps.Ledger, logger: logger}, nil
}

func (s *inventoryService) ReserveAll(ctx context.Context, lines []StockLine) error {
	normalized, err := normalizeStockLines(lines)
	if err != nil {
		return err
	}
	if len(normalized) == 0 {
		return nil
	}
	if err := s.ledger.Reserve(ctx, normalized); err != nil {
		mapped := translateRepoError(err)
		var short *InsufficientStockError
		if errors.As(mapped, &short) {
			s.logger(ctx, "inventory.reserve.short", map[string]any{
				"variants": shortfallVariants(short.Shortfalls),
			})
		}
		return mapped
	}
	s.logger(ctx, "inventory.reserve", map[string]any{"lines": len(normalized)})
	return nil
}

func (s *inventoryService) ReleaseAll(ctx context.Context, lines []StockLine) error {
	normalized, err := normalizeStockLines(lines)
	if err != nil {
		return err
	}
	if len(normalized) == 0 {
		return nil
	}
	if err := s.ledger.Release(ctx, normalized); err != nil {
		return translateRepoError(err)
	}
	s.logger(ctx, "inventory.release", map[string]any{"lines": len(normalized)})
	return nil
}

func (s *inventoryService) CheckAvailable(ctx context.Context, lines []StockLine) error {
	normalized, err := normalizeStockLines(lines)
	if err != nil {
		return err
	}
	if len(normalized) == 0 {
		return nil
	}
	ids := make([]string, 0, len(normalized))
	for _, line := range normalized {
		ids = append(ids, line.VariantID)
	}
	available, err := s.Available(ctx, ids)
	if err != nil {
		return err
	}
	var shortfalls []StockShortfall
	for _, line := range normalized {
		if have := available[line.VariantID]; have < line.Quantity {
			shortfalls = append(shortfalls, StockShortfall{
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: have,
			})
		}
	}
	if len(shortfalls) > 0 {
		return newInsufficientStock(shortfalls)
	}
	return nil
}

func (s *inventoryService) Available(ctx context.Context, variantIDs []string) (map[string]int, error) {
	ids := make([]string, 0, len(variantIDs))
	seen := make(map[string]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]int{}, nil
	}
	available, err := s.ledger.Available(ctx, ids)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return available, nil
}

// normalizeStockLines drops zero quantities and merges duplicates. Negative quantities are rejected.
func normalizeStockLines(lines []StockLine) ([]StockLine, error) {
	filtered := make([]domain.StockLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 0 {
			return nil, badRequest("quantity for %s must not be negative", line.VariantID)
		}
		if line.Quantity == 0 {
			continue
		}
		filtered = append(filtered, line)
	}
	normalized, err := repositories.NormalizeStockLines("inventory", filtered)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return normalized, nil
}

func shortfallVariants(shortfalls []StockShortfall) []string {
	ids := make([]string, 0, len(shortfalls))
	for _, s := range shortfalls {
		ids = append(ids, s.VariantID)
	}
	sort.Strings(ids)
	return ids
}
