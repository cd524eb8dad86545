package repositories

import (
	"errors"
	"fmt"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

// InventoryErrorCode enumerates repository error causes for inventory operations.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorInsufficientStock indicates requested quantity exceeds availability.
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	// InventoryErrorStockNotFound indicates the variant does not have a stock record.
	InventoryErrorStockNotFound InventoryErrorCode = "inventory_stock_not_found"
	// InventoryErrorInvalidQuantity indicates a non-positive quantity was supplied.
	InventoryErrorInvalidQuantity InventoryErrorCode = "inventory_invalid_quantity"
)

// InventoryError wraps inventory-specific failures with machine readable codes.
type InventoryError struct {
	Op         string
	Code       InventoryErrorCode
	Message    string
	Shortfalls []domain.StockShortfall
	Err        error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInsufficientStockError reports every variant that could not be reserved.
func NewInsufficientStockError(op string, shortfalls []domain.StockShortfall) *InventoryError {
	return &InventoryError{
		Op:         op,
		Code:       InventoryErrorInsufficientStock,
		Message:    fmt.Sprintf("insufficient stock for %d variant(s)", len(shortfalls)),
		Shortfalls: append([]domain.StockShortfall(nil), shortfalls...),
	}
}

// AsInventoryError extracts an *InventoryError from the chain.
func AsInventoryError(err error) (*InventoryError, bool) {
	var invErr *InventoryError
	if errors.As(err, &invErr) && invErr != nil {
		return invErr, true
	}
	return nil, false
}

// NormalizeStockLines merges duplicate variants and rejects blank ids or non-positive quantities.
func NormalizeStockLines(op string, lines []domain.StockLine) ([]domain.StockLine, error) {
	order := make([]string, 0, len(lines))
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.VariantID == "" {
			return nil, &InventoryError{Op: op, Code: InventoryErrorStockNotFound, Message: "variant id is required"}
		}
		if line.Quantity <= 0 {
			return nil, &InventoryError{Op: op, Code: InventoryErrorInvalidQuantity, Message: fmt.Sprintf("quantity for %s must be positive", line.VariantID)}
		}
		if _, seen := totals[line.VariantID]; !seen {
			order = append(order, line.VariantID)
		}
		totals[line.VariantID] += line.Quantity
	}
	result := make([]domain.StockLine, 0, len(order))
	for _, id := range order {
		result = append(result, domain.StockLine{VariantID: id, Quantity: totals[id]})
	}
	return result, nil
}
