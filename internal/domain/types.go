package domain

import (
	"time"
)

const (
	// DefaultPageLimit is applied when callers omit a page size.
	DefaultPageLimit = 20
	// MaxPageLimit bounds page sizes accepted by list operations.
	MaxPageLimit = 100
)

// Pagination defines page/limit paging inputs for list operations. Page is 1-based.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps the pagination inputs to supported bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of records skipped before the requested page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Page represents a page of results alongside the paging inputs that produced it.
type Page[T any] struct {
	Items   []T
	Page    int
	Limit   int
	HasMore bool
}

// Address captures a postal address. Orders embed a copy taken at placement time.
type Address struct {
	ID         string
	UserID     string
	Label      string
	Recipient  string
	Company    string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaymentMethod is a stored buyer payment instrument. Only summary fields are kept.
type PaymentMethod struct {
	ID        string
	UserID    string
	Provider  string
	Brand     string
	Last4     string
	ExpMonth  int
	ExpYear   int
	CreatedAt time.Time
}

// PaymentMethodSummary is the non-sensitive snapshot embedded in orders.
type PaymentMethodSummary struct {
	ID       string
	Provider string
	Brand    string
	Last4    string
}

// Summary reduces the payment method to the fields stored on an order.
func (p PaymentMethod) Summary() PaymentMethodSummary {
	return PaymentMethodSummary{
		ID:       p.ID,
		Provider: p.Provider,
		Brand:    p.Brand,
		Last4:    p.Last4,
	}
}

// Health check states reported by readiness probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// HealthCheck is the outcome of probing a single dependency.
type HealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency probes.
type HealthReport struct {
	Status      string
	Checks      map[string]HealthCheck
	GeneratedAt time.Time
}
