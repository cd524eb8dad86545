package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/termitepreston/wigvana/internal/domain"
	pfirestore "github.com/termitepreston/wigvana/internal/platform/firestore"
	"github.com/termitepreston/wigvana/internal/repositories"
)

const variantCollection = "variants"

// InventoryLedger keeps sellable stock on the variant documents. Reservations read every variant
// before writing any of them, so a batch reserve joins a caller transaction without breaking
// Firestore's reads-before-writes rule.
type InventoryLedger struct {
	provider *pfirestore.Provider
	variants *pfirestore.Collection[variantDocument]
	clock    func() time.Time
}

// NewInventoryLedger constructs a Firestore-backed inventory ledger.
func NewInventoryLedger(provider *pfirestore.Provider) (*InventoryLedger, error) {
	if provider == nil {
		return nil, errors.New("inventory ledger requires firestore provider")
	}
	return &InventoryLedger{
		provider: provider,
		variants: pfirestore.NewCollection[variantDocument](provider, variantCollection),
		clock:    time.Now,
	}, nil
}

// Reserve decrements stock for every line or for none of them.
func (l *InventoryLedger) Reserve(ctx context.Context, lines []domain.StockLine) error {
	normalized, err := repositories.NormalizeStockLines("inventory.reserve", lines)
	if err != nil {
		return err
	}

	err = l.provider.RunInTx(ctx, func(ctx context.Context) error {
		docs, err := l.variants.GetAll(ctx, variantIDs(normalized))
		if err != nil {
			return err
		}

		var shortfalls []domain.StockShortfall
		for i, line := range normalized {
			if available := docs[i].Data.Stock; available < line.Quantity {
				shortfalls = append(shortfalls, domain.StockShortfall{
					VariantID: line.VariantID,
					Requested: line.Quantity,
					Available: available,
				})
			}
		}
		if len(shortfalls) > 0 {
			return repositories.NewInsufficientStockError("inventory.reserve", shortfalls)
		}

		now := l.clock().UTC()
		for i, line := range normalized {
			err := l.variants.Update(ctx, line.VariantID, []firestore.Update{
				{Path: "stock", Value: docs[i].Data.Stock - line.Quantity},
				{Path: "updatedAt", Value: now},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return wrapInventoryError("inventory.reserve", err)
}

// Release adds stock back. Increments need no prior read so release can follow writes in a transaction.
func (l *InventoryLedger) Release(ctx context.Context, lines []domain.StockLine) error {
	normalized, err := repositories.NormalizeStockLines("inventory.release", lines)
	if err != nil {
		return err
	}

	err = l.provider.RunInTx(ctx, func(ctx context.Context) error {
		now := l.clock().UTC()
		for _, line := range normalized {
			err := l.variants.Update(ctx, line.VariantID, []firestore.Update{
				{Path: "stock", Value: firestore.Increment(line.Quantity)},
				{Path: "updatedAt", Value: now},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return wrapInventoryError("inventory.release", err)
}

// Available reports current stock without reserving it.
func (l *InventoryLedger) Available(ctx context.Context, ids []string) (map[string]int, error) {
	if len(ids) == 0 {
		return map[string]int{}, nil
	}
	docs, err := l.variants.GetAll(ctx, ids)
	if err != nil {
		return nil, wrapInventoryError("inventory.available", err)
	}
	result := make(map[string]int, len(docs))
	for _, doc := range docs {
		result[doc.ID] = doc.Data.Stock
	}
	return result, nil
}

func variantIDs(lines []domain.StockLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	return ids
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, "variant not found", err)
		invErr.Op = op
		return invErr
	}
	return pfirestore.WrapError(op, err)
}

type variantDocument struct {
	ProductID  string            `firestore:"productId"`
	SellerID   string            `firestore:"sellerId"`
	Title      string            `firestore:"title"`
	SKU        string            `firestore:"sku,omitempty"`
	Price      int64             `firestore:"price"`
	Currency   string            `firestore:"currency"`
	Active     bool              `firestore:"active"`
	Stock      int               `firestore:"stock"`
	Attributes map[string]string `firestore:"attributes,omitempty"`
	UpdatedAt  time.Time         `firestore:"updatedAt"`
}
