package services

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

var (
	// ErrNotFound indicates the resource is absent or not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest signals invalid input or an illegal state transition.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict indicates a lost optimistic-concurrency race or a duplicate operation.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the caller is authenticated but not allowed to act on the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInsufficientStock is matched by *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("service unavailable")
)

// InsufficientStockError reports every variant whose requested quantity exceeds availability.
type InsufficientStockError struct {
	Shortfalls []domain.StockShortfall
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	if e == nil || len(e.Shortfalls) == 0 {
		return ErrInsufficientStock.Error()
	}
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.VariantID, s.Requested, s.Available))
	}
	return fmt.Sprintf("%s: %s", ErrInsufficientStock.Error(), strings.Join(parts, ", "))
}

// Is matches both ErrInsufficientStock and ErrBadRequest.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || target == ErrBadRequest
}

func newInsufficientStock(shortfalls []domain.StockShortfall) error {
	return &InsufficientStockError{Shortfalls: append([]domain.StockShortfall(nil), shortfalls...)}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// translateRepoError maps persistence failures onto the service error taxonomy.
func translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrBadRequest, ErrConflict, ErrForbidden, ErrUnavailable} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if invErr, ok := repositories.AsInventoryError(err); ok {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return newInsufficientStock(invErr.Shortfalls)
		case repositories.InventoryErrorStockNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repositories.InventoryErrorInvalidQuantity:
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
