package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return "repo failure" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

func TestInsufficientStockErrorMatchesBadRequest(t *testing.T) {
	err := newInsufficientStock([]domain.StockShortfall{{VariantID: "var-a", Requested: 3, Available: 1}})
	if !errors.Is(err, ErrInsufficientStock) || !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected insufficient stock to match both sentinels")
	}
	if errors.Is(err, ErrConflict) {
		t.Fatalf("insufficient stock must not match conflict")
	}
	if !strings.Contains(err.Error(), "var-a (requested 3, available 1)") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestTranslateRepoError(t *testing.T) {
	plain := errors.New("boom")
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "service sentinel passes through", err: notFound("order x"), target: ErrNotFound},
		{name: "insufficient stock", err: repositories.NewInsufficientStockError("op", []domain.StockShortfall{{VariantID: "v"}}), target: ErrInsufficientStock},
		{name: "missing stock record", err: repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, "", nil), target: ErrNotFound},
		{name: "invalid quantity", err: repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, "", nil), target: ErrBadRequest},
		{name: "repo not found", err: fmt.Errorf("wrapped: %w", stubRepoError{notFound: true}), target: ErrNotFound},
		{name: "repo conflict", err: stubRepoError{conflict: true}, target: ErrConflict},
		{name: "repo unavailable", err: stubRepoError{unavailable: true}, target: ErrUnavailable},
		{name: "unknown", err: plain, target: plain},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := translateRepoError(tc.err); !errors.Is(got, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, got)
			}
		})
	}

	if translateRepoError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	var short *InsufficientStockError
	translated := translateRepoError(repositories.NewInsufficientStockError("op", []domain.StockShortfall{{VariantID: "v", Requested: 2}}))
	if !errors.As(translated, &short) || short.Shortfalls[0].Requested != 2 {
		t.Fatalf("expected shortfalls carried over, got %v", translated)
	}
}
