package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/services"
)

func newStoreRouter(h *StoreOrderHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/me", h.Routes)
	return router
}

func TestStoreOrderHandlersRequireSellerRole(t *testing.T) {
	router := newStoreRouter(NewStoreOrderHandlers(nil, &stubOrderService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodGet, "/me/store/orders", nil), "buyer-1", auth.RoleBuyer))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestStoreOrderHandlersGetOrderSellerView(t *testing.T) {
	var gotSeller, gotOrder string
	orders := &stubOrderService{
		getSellerFn: func(ctx context.Context, sellerID, orderID string) (services.Order, error) {
			gotSeller, gotOrder = sellerID, orderID
			return sampleOrder().SellerView(sellerID), nil
		},
	}
	router := newStoreRouter(NewStoreOrderHandlers(nil, orders))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodGet, "/me/store/orders/ord_1", nil), "seller-a", auth.RoleSeller))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotSeller != "seller-a" || gotOrder != "ord_1" {
		t.Fatalf("unexpected scope seller=%s order=%s", gotSeller, gotOrder)
	}

	order := decodeBody(t, rr)["order"].(map[string]any)
	lines := order["lines"].([]any)
	if len(lines) != 1 || lines[0].(map[string]any)["seller_id"] != "seller-a" {
		t.Fatalf("expected only seller-a lines, got %v", lines)
	}
	if order["seller_subtotal"].(float64) != 10000 {
		t.Fatalf("expected seller subtotal 10000, got %v", order["seller_subtotal"])
	}
	if _, ok := order["notes"]; ok {
		t.Fatalf("seller payload must not expose notes")
	}
}

func TestStoreOrderHandlersListOrders(t *testing.T) {
	var gotSeller string
	orders := &stubOrderService{
		listSellerFn: func(ctx context.Context, sellerID string, filter services.OrderListFilter) (domain.Page[services.Order], error) {
			gotSeller = sellerID
			return domain.Page[services.Order]{Items: []services.Order{sampleOrder().SellerView(sellerID)}, Page: 1, Limit: 20}, nil
		},
	}
	router := newStoreRouter(NewStoreOrderHandlers(nil, orders))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodGet, "/me/store/orders", nil), "seller-b", auth.RoleSeller))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotSeller != "seller-b" {
		t.Fatalf("expected seller-b scope, got %q", gotSeller)
	}
	items := decodeBody(t, rr)["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["items_count"].(float64) != 1 {
		t.Fatalf("expected one seller-b item, got %v", items)
	}
}

func TestStoreOrderHandlersUpdateStatus(t *testing.T) {
	var captured services.SellerTransitionCommand
	orders := &stubOrderService{
		sellerFn: func(ctx context.Context, cmd services.SellerTransitionCommand) (services.Order, error) {
			captured = cmd
			order := sampleOrder()
			order.Lines[0].Status = domain.LineStatusShipped
			order.Tracking = domain.OrderTracking{Number: cmd.TrackingNumber, Carrier: cmd.Carrier}
			return order.SellerView(cmd.SellerID), nil
		},
	}
	router := newStoreRouter(NewStoreOrderHandlers(nil, orders))

	req := jsonRequest(t, http.MethodPatch, "/me/store/orders/ord_1/status", map[string]any{
		"status":          " Shipped ",
		"tracking_number": "TRACK123",
		"carrier":         "UPS",
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withIdentity(req, "seller-a", auth.RoleSeller))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.SellerID != "seller-a" || captured.Status != domain.OrderStatusShipped || captured.TrackingNumber != "TRACK123" {
		t.Fatalf("unexpected command %+v", captured)
	}
	if order := decodeBody(t, rr)["order"].(map[string]any); order["tracking_number"] != "TRACK123" {
		t.Fatalf("expected tracking number in payload, got %v", order["tracking_number"])
	}
}

func TestStoreOrderHandlersUpdateStatusErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   map[string]any
		err    error
		status int
	}{
		{name: "missing status", body: map[string]any{"note": "x"}, status: http.StatusBadRequest},
		{name: "foreign order", body: map[string]any{"status": "shipped"}, err: fmt.Errorf("no lines: %w", services.ErrForbidden), status: http.StatusForbidden},
		{name: "invalid transition", body: map[string]any{"status": "completed"}, err: fmt.Errorf("target: %w", services.ErrBadRequest), status: http.StatusBadRequest},
		{name: "missing order", body: map[string]any{"status": "shipped"}, err: fmt.Errorf("order: %w", services.ErrNotFound), status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderService{
				sellerFn: func(ctx context.Context, cmd services.SellerTransitionCommand) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			router := newStoreRouter(NewStoreOrderHandlers(nil, orders))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, withIdentity(jsonRequest(t, http.MethodPatch, "/me/store/orders/ord_1/status", tc.body), "seller-b", auth.RoleSeller))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}
