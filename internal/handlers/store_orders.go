package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/httpx"
	"github.com/termitepreston/wigvana/internal/services"
)

type sellerStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Note           string `json:"note"`
}

// StoreOrderHandlers exposes seller-scoped order endpoints under /me/store/orders. Responses only
// carry the calling seller's lines.
type StoreOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewStoreOrderHandlers constructs seller order handlers.
func NewStoreOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *StoreOrderHandlers {
	return &StoreOrderHandlers{authn: authn, orders: orders}
}

// Routes registers the /me/store/orders endpoints.
func (h *StoreOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireFirebaseAuth(auth.RoleSeller))
		}
		g.Get("/store/orders", h.listOrders)
		g.Get("/store/orders/{orderID}", h.getOrder)
		g.Patch("/store/orders/{orderID}/status", h.updateStatus)
	})
}

func (h *StoreOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID, ok := h.seller(w, r)
	if !ok {
		return
	}
	filter, ok := parseListParams(ctx, w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListSellerOrders(ctx, sellerID, filter)
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, buildOrderSummary))
}

func (h *StoreOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID, ok := h.seller(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetSellerOrder(ctx, sellerID, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildSellerOrderPayload(order)})
}

func (h *StoreOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID, ok := h.seller(w, r)
	if !ok {
		return
	}

	var req sellerStatusRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, false, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SellerTransition(ctx, services.SellerTransitionCommand{
		SellerID:       sellerID,
		OrderID:        strings.TrimSpace(chi.URLParam(r, "orderID")),
		Status:         services.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Note:           req.Note,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildSellerOrderPayload(order)})
}

func (h *StoreOrderHandlers) seller(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := requireRole(ctx, w, auth.RoleSeller)
	if !ok {
		return "", false
	}
	return identity.SellerID(), true
}
