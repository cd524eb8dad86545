package domain

import (
	"strings"
	"time"
)

// CartStatus describes the lifecycle of a cart.
type CartStatus string

const (
	// CartStatusActive marks the single mutable cart of an owner.
	CartStatusActive CartStatus = "active"
	// CartStatusMerged marks an anonymous cart consumed by a login merge.
	CartStatusMerged CartStatus = "merged"
	// CartStatusAbandoned is a housekeeping terminal state.
	CartStatusAbandoned CartStatus = "abandoned"
	// CartStatusCompleted marks a cart consumed by order placement.
	CartStatusCompleted CartStatus = "completed"
)

// CartOwner identifies who a cart belongs to. Exactly one of UserID or AnonymousID is set.
type CartOwner struct {
	UserID      string
	AnonymousID string
}

// UserOwner returns an owner reference for an authenticated user.
func UserOwner(userID string) CartOwner {
	return CartOwner{UserID: strings.TrimSpace(userID)}
}

// AnonymousOwner returns an owner reference for an anonymous session.
func AnonymousOwner(anonymousID string) CartOwner {
	return CartOwner{AnonymousID: strings.TrimSpace(anonymousID)}
}

// Valid reports whether exactly one owner reference is present.
func (o CartOwner) Valid() bool {
	return (o.UserID == "") != (o.AnonymousID == "")
}

// IsAnonymous reports whether the owner is an anonymous session.
func (o CartOwner) IsAnonymous() bool {
	return o.UserID == "" && o.AnonymousID != ""
}

// Key returns a stable lookup key, prefixed by owner kind.
func (o CartOwner) Key() string {
	if o.IsAnonymous() {
		return "anon:" + o.AnonymousID
	}
	return "user:" + o.UserID
}

// Cart is a shopping cart and its lines.
type Cart struct {
	ID         string
	Owner      CartOwner
	Status     CartStatus
	Lines      []CartLine
	Version    int64
	MergedInto string
	MergedBy   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartLine is a (cart, variant) pairing with a price snapshot taken when first added.
type CartLine struct {
	ID        string
	ProductID string
	VariantID string
	SellerID  string
	Title     string
	SKU       string
	Quantity  int
	UnitPrice int64
	Currency  string
	AddedAt   time.Time
	UpdatedAt time.Time
}

// LineTotal returns the extended price of the line.
func (l CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// CartSummary is derived from the current lines on every read.
type CartSummary struct {
	Currency  string
	Subtotal  int64
	ItemCount int
	LineCount int
}

// LineByVariant returns the index of the line holding the variant, or -1.
func (c Cart) LineByVariant(variantID string) int {
	for i, line := range c.Lines {
		if line.VariantID == variantID {
			return i
		}
	}
	return -1
}

// LineByID returns the index of the line with the given id, or -1.
func (c Cart) LineByID(lineID string) int {
	for i, line := range c.Lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}

// Summary recomputes subtotal, quantities and currency from the lines.
func (c Cart) Summary() CartSummary {
	summary := CartSummary{LineCount: len(c.Lines)}
	for _, line := range c.Lines {
		if summary.Currency == "" {
			summary.Currency = line.Currency
		}
		summary.Subtotal += line.LineTotal()
		summary.ItemCount += line.Quantity
	}
	return summary
}

// IsActive reports whether the cart still accepts mutations.
func (c Cart) IsActive() bool {
	return c.Status == CartStatusActive
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	dup := c
	if c.Lines != nil {
		dup.Lines = make([]CartLine, len(c.Lines))
		copy(dup.Lines, c.Lines)
	}
	return dup
}
