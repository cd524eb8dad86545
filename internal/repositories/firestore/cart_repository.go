package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/termitepreston/wigvana/internal/domain"
	pfirestore "github.com/termitepreston/wigvana/internal/platform/firestore"
)

const (
	cartCollection      = "carts"
	cartOwnerCollection = "cartOwners"
)

// CartRepository persists carts with their lines embedded. The single active cart of each owner
// is tracked by a pointer document keyed by the owner so uniqueness holds without queries.
type CartRepository struct {
	provider *pfirestore.Provider
	carts    *pfirestore.Collection[cartDocument]
	owners   *pfirestore.Collection[cartOwnerDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		provider: provider,
		carts:    pfirestore.NewCollection[cartDocument](provider, cartCollection),
		owners:   pfirestore.NewCollection[cartOwnerDocument](provider, cartOwnerCollection),
	}, nil
}

// Insert creates the cart. Creating a second active cart for the same owner fails with a conflict.
func (r *CartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.ID) == "" {
		return errors.New("cart repository: cart id is required")
	}
	if cart.Version == 0 {
		cart.Version = 1
	}
	return r.provider.RunInTx(ctx, func(ctx context.Context) error {
		if cart.IsActive() {
			if err := r.owners.Create(ctx, ownerDocID(cart.Owner), cartOwnerDocument{CartID: cart.ID}); err != nil {
				return err
			}
		}
		return r.carts.Create(ctx, cart.ID, newCartDocument(cart))
	})
}

// Update writes the cart when the stored version matches. Inside a caller-owned transaction the
// cart must have been read in that transaction; Firestore aborts the commit on concurrent change.
func (r *CartRepository) Update(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if strings.TrimSpace(cart.ID) == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	if _, inTx := pfirestore.TransactionFromContext(ctx); inTx {
		return r.write(ctx, cart, cart.Status)
	}

	var saved domain.Cart
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		current, err := r.carts.Get(ctx, cart.ID)
		if err != nil {
			return err
		}
		if current.Data.Version != cart.Version {
			return pfirestore.ConflictError("carts.update", "cart %s version %d is stale", cart.ID, cart.Version)
		}
		saved, err = r.write(ctx, cart, domain.CartStatus(current.Data.Status))
		return err
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return saved, nil
}

func (r *CartRepository) write(ctx context.Context, cart domain.Cart, previous domain.CartStatus) (domain.Cart, error) {
	ownerID := ownerDocID(cart.Owner)
	switch {
	case cart.IsActive() && previous != domain.CartStatusActive:
		if err := r.owners.Create(ctx, ownerID, cartOwnerDocument{CartID: cart.ID}); err != nil {
			return domain.Cart{}, err
		}
	case !cart.IsActive():
		if err := r.owners.Delete(ctx, ownerID); err != nil {
			return domain.Cart{}, err
		}
	}

	cart.Version++
	if err := r.carts.Set(ctx, cart.ID, newCartDocument(cart)); err != nil {
		return domain.Cart{}, err
	}
	return cart.Clone(), nil
}

// FindByID loads the cart by identifier.
func (r *CartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}
	doc, err := r.carts.Get(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindActiveByOwner resolves the owner's active cart through its pointer document.
func (r *CartRepository) FindActiveByOwner(ctx context.Context, owner domain.CartOwner) (domain.Cart, error) {
	if !owner.Valid() {
		return domain.Cart{}, errors.New("cart repository: owner is invalid")
	}
	pointer, err := r.owners.Get(ctx, ownerDocID(owner))
	if err != nil {
		return domain.Cart{}, err
	}
	cart, err := r.FindByID(ctx, pointer.Data.CartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !cart.IsActive() {
		return domain.Cart{}, pfirestore.NotFoundError("carts.active", "no active cart for owner")
	}
	return cart, nil
}

// Firestore document ids cannot contain '/', and owner keys are opaque ids with a prefix.
func ownerDocID(owner domain.CartOwner) string {
	return strings.ReplaceAll(owner.Key(), "/", "_")
}

type cartOwnerDocument struct {
	CartID string `firestore:"cartId"`
}

type cartDocument struct {
	UserID      string             `firestore:"userId,omitempty"`
	AnonymousID string             `firestore:"anonymousId,omitempty"`
	Status      string             `firestore:"status"`
	Lines       []cartLineDocument `firestore:"lines"`
	Version     int64              `firestore:"version"`
	MergedInto  string             `firestore:"mergedInto,omitempty"`
	MergedBy    string             `firestore:"mergedBy,omitempty"`
	CreatedAt   time.Time          `firestore:"createdAt"`
	UpdatedAt   time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ID        string    `firestore:"id"`
	ProductID string    `firestore:"productId"`
	VariantID string    `firestore:"variantId"`
	SellerID  string    `firestore:"sellerId"`
	Title     string    `firestore:"title,omitempty"`
	SKU       string    `firestore:"sku,omitempty"`
	Quantity  int       `firestore:"quantity"`
	UnitPrice int64     `firestore:"unitPrice"`
	Currency  string    `firestore:"currency"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		UserID:      cart.Owner.UserID,
		AnonymousID: cart.Owner.AnonymousID,
		Status:      string(cart.Status),
		Lines:       make([]cartLineDocument, 0, len(cart.Lines)),
		Version:     cart.Version,
		MergedInto:  cart.MergedInto,
		MergedBy:    cart.MergedBy,
		CreatedAt:   cart.CreatedAt.UTC(),
		UpdatedAt:   cart.UpdatedAt.UTC(),
	}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, cartLineDocument{
			ID:        line.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SellerID:  line.SellerID,
			Title:     line.Title,
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Currency:  line.Currency,
			AddedAt:   line.AddedAt.UTC(),
			UpdatedAt: line.UpdatedAt.UTC(),
		})
	}
	return doc
}

func (d cartDocument) toDomain(id string) domain.Cart {
	cart := domain.Cart{
		ID:         id,
		Owner:      domain.CartOwner{UserID: d.UserID, AnonymousID: d.AnonymousID},
		Status:     domain.CartStatus(d.Status),
		Lines:      make([]domain.CartLine, 0, len(d.Lines)),
		Version:    d.Version,
		MergedInto: d.MergedInto,
		MergedBy:   d.MergedBy,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, line := range d.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SellerID:  line.SellerID,
			Title:     line.Title,
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Currency:  line.Currency,
			AddedAt:   line.AddedAt,
			UpdatedAt: line.UpdatedAt,
		})
	}
	return cart
}
