package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/httpx"
	"github.com/termitepreston/wigvana/internal/services"
)

const maxOrderBodySize = 8 * 1024

type placeOrderRequest struct {
	CartID            string `json:"cart_id"`
	ShippingAddressID string `json:"shipping_address_id"`
	BillingAddressID  string `json:"billing_address_id"`
	PaymentMethodID   string `json:"payment_method_id"`
	ShippingMethod    string `json:"shipping_method"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type returnRequest struct {
	LineID   string `json:"line_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// OrderHandlers exposes buyer-scoped order endpoints under /me/orders.
type OrderHandlers struct {
	authn       *auth.Authenticator
	placement   services.OrderPlacementService
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithOrderIdempotency guards order placement with the given middleware.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, placement services.OrderPlacementService, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:     authn,
		placement: placement,
		orders:    orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /me/orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireFirebaseAuth())
		}
		place := http.Handler(http.HandlerFunc(h.placeOrder))
		if h.idempotency != nil {
			place = h.idempotency(place)
		}
		g.Method(http.MethodPost, "/orders", place)
		g.Get("/orders", h.listOrders)
		g.Get("/orders/{orderID}", h.getOrder)
		g.Post("/orders/{orderID}/cancel", h.cancelOrder)
		g.Post("/orders/{orderID}/returns", h.requestReturn)
	})
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.placement == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	var req placeOrderRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, false, &req) {
		return
	}
	if strings.TrimSpace(req.ShippingAddressID) == "" || strings.TrimSpace(req.PaymentMethodID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipping_address_id and payment_method_id are required", http.StatusBadRequest))
		return
	}

	order, err := h.placement.Place(ctx, services.PlaceOrderCommand{
		BuyerID:           identity.UID,
		CartID:            strings.TrimSpace(req.CartID),
		ShippingAddressID: strings.TrimSpace(req.ShippingAddressID),
		BillingAddressID:  strings.TrimSpace(req.BillingAddressID),
		PaymentMethodID:   strings.TrimSpace(req.PaymentMethodID),
		ShippingMethod:    strings.TrimSpace(req.ShippingMethod),
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}

	w.Header().Set("Location", "/api/v1/me/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ordersAvailable(w, r) {
		return
	}
	identity, ok := requireUser(ctx, w)
	if !ok {
		return
	}
	filter, ok := parseListParams(ctx, w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListBuyerOrders(ctx, identity.UID, filter)
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, buildOrderSummary))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ordersAvailable(w, r) {
		return
	}
	identity, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetBuyerOrder(ctx, identity.UID, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ordersAvailable(w, r) {
		return
	}
	identity, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, true, &req) {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		BuyerID: identity.UID,
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) requestReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ordersAvailable(w, r) {
		return
	}
	identity, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	var req returnRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, false, &req) {
		return
	}

	order, err := h.orders.RequestReturn(ctx, services.RequestReturnCommand{
		BuyerID:  identity.UID,
		OrderID:  strings.TrimSpace(chi.URLParam(r, "orderID")),
		LineID:   strings.TrimSpace(req.LineID),
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order, false)})
}

func (h *OrderHandlers) ordersAvailable(w http.ResponseWriter, r *http.Request) bool {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}
