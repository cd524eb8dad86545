package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/httpx"
	"github.com/termitepreston/wigvana/internal/services"
)

type adminStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Note           string `json:"note"`
}

type refundRequest struct {
	Amount  int64    `json:"amount"`
	Reason  string   `json:"reason"`
	LineIDs []string `json:"line_ids"`
}

type resolveReturnRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

// AdminOrderHandlers exposes unrestricted order endpoints for administrators.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewAdminOrderHandlers constructs admin order handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders}
}

// Routes registers the /admin/orders endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
		}
		g.Get("/orders", h.listOrders)
		g.Get("/orders/{orderID}", h.getOrder)
		g.Patch("/orders/{orderID}/status", h.updateStatus)
		g.Post("/orders/{orderID}/refunds", h.refund)
		g.Post("/orders/{orderID}/returns/{returnID}/resolve", h.resolveReturn)
	})
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.admin(w, r); !ok {
		return
	}
	filter, ok := parseListParams(ctx, w, r)
	if !ok {
		return
	}
	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, buildOrderSummary))
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.admin(w, r); !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, true)})
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.admin(w, r)
	if !ok {
		return
	}
	var req adminStatusRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, false, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.AdminTransition(ctx, services.AdminTransitionCommand{
		ActorID:        identity.UID,
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
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, true)})
}

func (h *AdminOrderHandlers) refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.admin(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, false, &req) {
		return
	}

	order, err := h.orders.Refund(ctx, services.RefundOrderCommand{
		ActorID: identity.UID,
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Amount:  req.Amount,
		Reason:  req.Reason,
		LineIDs: req.LineIDs,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order, true)})
}

func (h *AdminOrderHandlers) resolveReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.admin(w, r)
	if !ok {
		return
	}
	var req resolveReturnRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, false, &req) {
		return
	}

	order, err := h.orders.ResolveReturn(ctx, services.ResolveReturnCommand{
		ActorID:  identity.UID,
		OrderID:  strings.TrimSpace(chi.URLParam(r, "orderID")),
		ReturnID: strings.TrimSpace(chi.URLParam(r, "returnID")),
		Decision: services.ReturnDecision(req.Decision),
		Note:     req.Note,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "return")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, true)})
}

func (h *AdminOrderHandlers) admin(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	return requireRole(ctx, w, auth.RoleAdmin)
}
