package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/carttoken"
	"github.com/termitepreston/wigvana/internal/services"
)

var errNotImplemented = errors.New("not implemented")

type stubCartService struct {
	getOrCreateFn func(context.Context, services.CartOwner) (services.Cart, error)
	getFn         func(context.Context, services.CartOwner, string) (services.Cart, error)
	addFn         func(context.Context, services.AddCartLineCommand) (services.Cart, error)
	setFn         func(context.Context, services.UpdateCartLineCommand) (services.Cart, error)
	removeFn      func(context.Context, services.RemoveCartLineCommand) (services.Cart, error)
	clearFn       func(context.Context, services.CartOwner, string) (services.Cart, error)
	mergeFn       func(context.Context, services.MergeCartCommand) (services.CartMergeResult, error)
}

func (s *stubCartService) GetOrCreate(ctx context.Context, owner services.CartOwner) (services.Cart, error) {
	if s.getOrCreateFn != nil {
		return s.getOrCreateFn(ctx, owner)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) Get(ctx context.Context, owner services.CartOwner, cartID string) (services.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, owner, cartID)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) AddLine(ctx context.Context, cmd services.AddCartLineCommand) (services.Cart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) SetLineQuantity(ctx context.Context, cmd services.UpdateCartLineCommand) (services.Cart, error) {
	if s.setFn != nil {
		return s.setFn(ctx, cmd)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) RemoveLine(ctx context.Context, cmd services.RemoveCartLineCommand) (services.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) Clear(ctx context.Context, owner services.CartOwner, cartID string) (services.Cart, error) {
	if s.clearFn != nil {
		return s.clearFn(ctx, owner, cartID)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) MergeAnonymous(ctx context.Context, cmd services.MergeCartCommand) (services.CartMergeResult, error) {
	if s.mergeFn != nil {
		return s.mergeFn(ctx, cmd)
	}
	return services.CartMergeResult{}, errNotImplemented
}

// stubTokenCodec accepts tokens of the form "tok:<anonymousID>:<cartID>".
type stubTokenCodec struct {
	expiresAt time.Time
}

func (s stubTokenCodec) Issue(anonymousID, cartID string) (string, time.Time, error) {
	return "tok:" + anonymousID + ":" + cartID, s.expiresAt, nil
}

func (s stubTokenCodec) Parse(token string) (carttoken.Claims, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 || parts[0] != "tok" {
		return carttoken.Claims{}, carttoken.ErrInvalidToken
	}
	return carttoken.Claims{AnonymousID: parts[1], CartID: parts[2], ExpiresAt: s.expiresAt}, nil
}

type stubPlacementService struct {
	placeFn func(context.Context, services.PlaceOrderCommand) (services.Order, error)
}

func (s *stubPlacementService) Place(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

type stubOrderService struct {
	listBuyerFn  func(context.Context, string, services.OrderListFilter) (domain.Page[services.Order], error)
	getBuyerFn   func(context.Context, string, string) (services.Order, error)
	listSellerFn func(context.Context, string, services.OrderListFilter) (domain.Page[services.Order], error)
	getSellerFn  func(context.Context, string, string) (services.Order, error)
	listFn       func(context.Context, services.OrderListFilter) (domain.Page[services.Order], error)
	getFn        func(context.Context, string) (services.Order, error)
	cancelFn     func(context.Context, services.CancelOrderCommand) (services.Order, error)
	sellerFn     func(context.Context, services.SellerTransitionCommand) (services.Order, error)
	adminFn      func(context.Context, services.AdminTransitionCommand) (services.Order, error)
	refundFn     func(context.Context, services.RefundOrderCommand) (services.Order, error)
	returnFn     func(context.Context, services.RequestReturnCommand) (services.Order, error)
	resolveFn    func(context.Context, services.ResolveReturnCommand) (services.Order, error)
}

func (s *stubOrderService) ListBuyerOrders(ctx context.Context, buyerID string, filter services.OrderListFilter) (domain.Page[services.Order], error) {
	if s.listBuyerFn != nil {
		return s.listBuyerFn(ctx, buyerID, filter)
	}
	return domain.Page[services.Order]{}, nil
}

func (s *stubOrderService) GetBuyerOrder(ctx context.Context, buyerID, orderID string) (services.Order, error) {
	if s.getBuyerFn != nil {
		return s.getBuyerFn(ctx, buyerID, orderID)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) ListSellerOrders(ctx context.Context, sellerID string, filter services.OrderListFilter) (domain.Page[services.Order], error) {
	if s.listSellerFn != nil {
		return s.listSellerFn(ctx, sellerID, filter)
	}
	return domain.Page[services.Order]{}, nil
}

func (s *stubOrderService) GetSellerOrder(ctx context.Context, sellerID, orderID string) (services.Order, error) {
	if s.getSellerFn != nil {
		return s.getSellerFn(ctx, sellerID, orderID)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.Page[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[services.Order]{}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) SellerTransition(ctx context.Context, cmd services.SellerTransitionCommand) (services.Order, error) {
	if s.sellerFn != nil {
		return s.sellerFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) AdminTransition(ctx context.Context, cmd services.AdminTransitionCommand) (services.Order, error) {
	if s.adminFn != nil {
		return s.adminFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) Refund(ctx context.Context, cmd services.RefundOrderCommand) (services.Order, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) RequestReturn(ctx context.Context, cmd services.RequestReturnCommand) (services.Order, error) {
	if s.returnFn != nil {
		return s.returnFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) ResolveReturn(ctx context.Context, cmd services.ResolveReturnCommand) (services.Order, error) {
	if s.resolveFn != nil {
		return s.resolveFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

type stubSystemService struct {
	reportFn func(context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFn != nil {
		return s.reportFn(ctx)
	}
	return services.SystemHealthReport{}, errNotImplemented
}

func withIdentity(req *http.Request, uid string, roles ...string) *http.Request {
	if len(roles) == 0 {
		roles = []string{auth.RoleBuyer}
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: roles}))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func sampleOrder() services.Order {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return services.Order{
		ID:            "ord_1",
		BuyerID:       "buyer-1",
		CartID:        "cart_1",
		Status:        domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusAuthorized,
		Currency:      "USD",
		Totals:        services.OrderTotals{Subtotal: 20000, Tax: 1500, Shipping: 400, Total: 21900},
		Lines: []services.OrderLine{
			{ID: "line_a", VariantID: "var-a", SellerID: "seller-a", Quantity: 2, UnitPrice: 5000, LineTotal: 10000, Status: domain.LineStatusProcessing},
			{ID: "line_b", VariantID: "var-b", SellerID: "seller-b", Quantity: 1, UnitPrice: 10000, LineTotal: 10000, Status: domain.LineStatusProcessing},
		},
		SellerIDs: []string{"seller-a", "seller-b"},
		Notes:     []domain.OrderNote{{ActorID: "admin-1", ActorRole: auth.RoleAdmin, Message: "checked", CreatedAt: created}},
		CreatedAt: created,
		UpdatedAt: created,
	}
}
