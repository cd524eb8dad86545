package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/services"
)

func TestNewRouterHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz", "/api/v1/healthz"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterUnknownRouteReturnsJSON(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != errorNotFoundCode {
		t.Fatalf("expected %s, got %v", errorNotFoundCode, body["error"])
	}
}

func TestNewRouterUnconfiguredGroupsReturnNotImplemented(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/api/v1/carts/abc", "/api/v1/me/orders", "/api/v1/admin/orders"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s: expected 501, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterMountsSharedMeGroup(t *testing.T) {
	carts := &stubCartService{
		getOrCreateFn: func(ctx context.Context, owner services.CartOwner) (services.Cart, error) {
			return sampleCart("cart_user", owner), nil
		},
	}
	cartHandlers := NewCartHandlers(nil, carts, stubTokenCodec{})
	orderHandlers := NewOrderHandlers(nil, nil, &stubOrderService{})
	storeHandlers := NewStoreOrderHandlers(nil, &stubOrderService{})
	adminHandlers := NewAdminOrderHandlers(nil, &stubOrderService{})

	router := NewRouter(
		WithCartRoutes(cartHandlers.AnonymousRoutes),
		WithMeRoutes(cartHandlers.MeRoutes, orderHandlers.Routes, storeHandlers.Routes),
		WithAdminRoutes(adminHandlers.Routes),
	)

	cases := []struct {
		path   string
		roles  []string
		status int
	}{
		{path: "/api/v1/me/cart", roles: []string{auth.RoleBuyer}, status: http.StatusOK},
		{path: "/api/v1/me/orders", roles: []string{auth.RoleBuyer}, status: http.StatusOK},
		{path: "/api/v1/me/store/orders", roles: []string{auth.RoleSeller}, status: http.StatusOK},
		{path: "/api/v1/admin/orders", roles: []string{auth.RoleAdmin}, status: http.StatusOK},
		{path: "/api/v1/carts/garbage", status: http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if len(tc.roles) > 0 {
			req = withIdentity(req, "user-1", tc.roles...)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", tc.path, tc.status, rr.Code, rr.Body.String())
		}
	}
}

func TestNewRouterAppliesCustomMiddleware(t *testing.T) {
	called := false
	router := NewRouter(WithMiddlewares(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !called {
		t.Fatalf("expected custom middleware to run")
	}
}
