package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/carttoken"
	"github.com/termitepreston/wigvana/internal/platform/httpx"
	"github.com/termitepreston/wigvana/internal/services"
)

// CartSessionHeader carries the client-generated nonce that scopes idempotent anonymous cart creation.
const CartSessionHeader = "X-Cart-Session"

const (
	maxCartBodySize     = 4 * 1024
	anonymousIDPrefix   = "anon_"
	defaultCartRateHits = 30
)

// CartTokenCodec issues and verifies the signed tokens that address anonymous carts.
type CartTokenCodec interface {
	Issue(anonymousID, cartID string) (string, time.Time, error)
	Parse(token string) (carttoken.Claims, error)
}

// CartHandlers exposes anonymous /carts endpoints and the authenticated /me/cart mirror.
type CartHandlers struct {
	authn          *auth.Authenticator
	carts          services.CartService
	tokens         CartTokenCodec
	newAnonymousID func() string
	idempotency    func(http.Handler) http.Handler
	createLimiter  rateLimiter
}

// CartHandlerOption customises CartHandlers.
type CartHandlerOption func(*CartHandlers)

// WithCartIdempotency guards anonymous cart creation. The middleware must scope keys per client,
// since a replayed response carries the cart token.
func WithCartIdempotency(mw func(http.Handler) http.Handler) CartHandlerOption {
	return func(h *CartHandlers) {
		h.idempotency = mw
	}
}

// WithCartCreationLimit caps anonymous cart creation per client address.
func WithCartCreationLimit(limit int, window time.Duration) CartHandlerOption {
	return func(h *CartHandlers) {
		h.createLimiter = newFixedWindowLimiter(limit, window, nil)
	}
}

// WithAnonymousIDGenerator overrides how anonymous session ids are minted.
func WithAnonymousIDGenerator(gen func() string) CartHandlerOption {
	return func(h *CartHandlers) {
		if gen != nil {
			h.newAnonymousID = gen
		}
	}
}

// NewCartHandlers constructs cart handlers. Authentication applies to the /me/cart routes only.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService, tokens CartTokenCodec, opts ...CartHandlerOption) *CartHandlers {
	h := &CartHandlers{
		authn:  authn,
		carts:  carts,
		tokens: tokens,
		newAnonymousID: func() string {
			return anonymousIDPrefix + ulid.Make().String()
		},
		createLimiter: newFixedWindowLimiter(defaultCartRateHits, time.Minute, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type addCartItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeCartRequest struct {
	CartToken string `json:"cart_token"`
}

// AnonymousRoutes wires the /carts endpoints addressed by cart token.
func (h *CartHandlers) AnonymousRoutes(r chi.Router) {
	if r == nil {
		return
	}
	create := http.Handler(http.HandlerFunc(h.createAnonymousCart))
	if h.idempotency != nil {
		create = h.idempotency(create)
	}
	r.With(limitByClientIP(h.createLimiter)).Method(http.MethodPost, "/", create)
	r.Get("/{cartToken}", h.getAnonymousCart)
	r.Delete("/{cartToken}", h.clearAnonymousCart)
	r.Post("/{cartToken}/items", h.addAnonymousItem)
	r.Put("/{cartToken}/items/{itemID}", h.updateAnonymousItem)
	r.Delete("/{cartToken}/items/{itemID}", h.removeAnonymousItem)
}

// MeRoutes wires the authenticated /me/cart endpoints.
func (h *CartHandlers) MeRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireFirebaseAuth())
		}
		g.Get("/cart", h.getMyCart)
		g.Delete("/cart", h.clearMyCart)
		g.Post("/cart/items", h.addMyItem)
		g.Put("/cart/items/{itemID}", h.updateMyItem)
		g.Delete("/cart/items/{itemID}", h.removeMyItem)
		g.Post("/cart/merge-anonymous", h.mergeAnonymous)
	})
}

func (h *CartHandlers) createAnonymousCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w, true) {
		return
	}
	var req addCartItemRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, false, &req) {
		return
	}

	anonymousID := h.newAnonymousID()
	cart, err := h.carts.AddLine(ctx, services.AddCartLineCommand{
		Owner:     domain.AnonymousOwner(anonymousID),
		VariantID: strings.TrimSpace(req.VariantID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}

	token, expiresAt, err := h.tokens.Issue(anonymousID, cart.ID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_token_error", "failed to issue cart token", http.StatusInternalServerError))
		return
	}

	writeNoStore(w)
	writeJSONResponse(w, http.StatusCreated, cartResponse{
		Cart:         buildCartPayload(cart),
		CartToken:    token,
		TokenExpires: formatTime(expiresAt),
	})
}

func (h *CartHandlers) getAnonymousCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.anonymousClaims(ctx, w, r)
	if !ok {
		return
	}
	cart, err := h.carts.Get(ctx, domain.AnonymousOwner(claims.AnonymousID), claims.CartID)
	h.respondCart(ctx, w, cart, err)
}

func (h *CartHandlers) clearAnonymousCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.anonymousClaims(ctx, w, r)
	if !ok {
		return
	}
	cart, err := h.carts.Clear(ctx, domain.AnonymousOwner(claims.AnonymousID), claims.CartID)
	h.respondCart(ctx, w, cart, err)
}

func (h *CartHandlers) addAnonymousItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.anonymousClaims(ctx, w, r)
	if !ok {
		return
	}
	h.addItem(ctx, w, r, domain.AnonymousOwner(claims.AnonymousID), claims.CartID)
}

func (h *CartHandlers) updateAnonymousItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.anonymousClaims(ctx, w, r)
	if !ok {
		return
	}
	h.updateItem(ctx, w, r, domain.AnonymousOwner(claims.AnonymousID), claims.CartID)
}

func (h *CartHandlers) removeAnonymousItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.anonymousClaims(ctx, w, r)
	if !ok {
		return
	}
	h.removeItem(ctx, w, r, domain.AnonymousOwner(claims.AnonymousID), claims.CartID)
}

func (h *CartHandlers) getMyCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.user(ctx, w)
	if !ok {
		return
	}
	cart, err := h.carts.GetOrCreate(ctx, domain.UserOwner(identity.UID))
	h.respondCart(ctx, w, cart, err)
}

func (h *CartHandlers) clearMyCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.user(ctx, w)
	if !ok {
		return
	}
	cart, err := h.carts.Clear(ctx, domain.UserOwner(identity.UID), "")
	h.respondCart(ctx, w, cart, err)
}

func (h *CartHandlers) addMyItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.user(ctx, w)
	if !ok {
		return
	}
	h.addItem(ctx, w, r, domain.UserOwner(identity.UID), "")
}

func (h *CartHandlers) updateMyItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.user(ctx, w)
	if !ok {
		return
	}
	h.updateItem(ctx, w, r, domain.UserOwner(identity.UID), "")
}

func (h *CartHandlers) removeMyItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.user(ctx, w)
	if !ok {
		return
	}
	h.removeItem(ctx, w, r, domain.UserOwner(identity.UID), "")
}

func (h *CartHandlers) mergeAnonymous(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.user(ctx, w)
	if !ok {
		return
	}
	if !h.available(ctx, w, true) {
		return
	}
	var req mergeCartRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, false, &req) {
		return
	}
	claims, err := h.tokens.Parse(req.CartToken)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
		return
	}

	result, err := h.carts.MergeAnonymous(ctx, services.MergeCartCommand{
		UserID:      identity.UID,
		AnonymousID: claims.AnonymousID,
		CartID:      claims.CartID,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}

	adjustments := make([]cartMergeAdjustmentPayload, 0, len(result.Adjustments))
	for _, adj := range result.Adjustments {
		adjustments = append(adjustments, cartMergeAdjustmentPayload{
			VariantID: adj.VariantID,
			Requested: adj.Requested,
			Applied:   adj.Applied,
			Reason:    adj.Reason,
		})
	}
	writeNoStore(w)
	writeJSONResponse(w, http.StatusOK, cartMergeResponse{Cart: buildCartPayload(result.Cart), Adjustments: adjustments})
}

func (h *CartHandlers) addItem(ctx context.Context, w http.ResponseWriter, r *http.Request, owner services.CartOwner, cartID string) {
	var req addCartItemRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, false, &req) {
		return
	}
	cart, err := h.carts.AddLine(ctx, services.AddCartLineCommand{
		Owner:     owner,
		CartID:    cartID,
		VariantID: strings.TrimSpace(req.VariantID),
		Quantity:  req.Quantity,
	})
	h.respondCart(ctx, w, cart, err)
}

func (h *CartHandlers) updateItem(ctx context.Context, w http.ResponseWriter, r *http.Request, owner services.CartOwner, cartID string) {
	var req updateCartItemRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, false, &req) {
		return
	}
	if req.Quantity < 1 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity must be at least 1", http.StatusBadRequest))
		return
	}
	cart, err := h.carts.SetLineQuantity(ctx, services.UpdateCartLineCommand{
		Owner:    owner,
		CartID:   cartID,
		LineID:   strings.TrimSpace(chi.URLParam(r, "itemID")),
		Quantity: req.Quantity,
	})
	h.respondCart(ctx, w, cart, err)
}

func (h *CartHandlers) removeItem(ctx context.Context, w http.ResponseWriter, r *http.Request, owner services.CartOwner, cartID string) {
	cart, err := h.carts.RemoveLine(ctx, services.RemoveCartLineCommand{
		Owner:  owner,
		CartID: cartID,
		LineID: strings.TrimSpace(chi.URLParam(r, "itemID")),
	})
	h.respondCart(ctx, w, cart, err)
}

func (h *CartHandlers) respondCart(ctx context.Context, w http.ResponseWriter, cart services.Cart, err error) {
	if err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}
	writeNoStore(w)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) available(ctx context.Context, w http.ResponseWriter, needTokens bool) bool {
	if h.carts == nil || (needTokens && h.tokens == nil) {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

// anonymousClaims verifies the path token. Invalid or expired tokens are reported as a missing cart.
func (h *CartHandlers) anonymousClaims(ctx context.Context, w http.ResponseWriter, r *http.Request) (carttoken.Claims, bool) {
	if !h.available(ctx, w, true) {
		return carttoken.Claims{}, false
	}
	claims, err := h.tokens.Parse(chi.URLParam(r, "cartToken"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
		return carttoken.Claims{}, false
	}
	return claims, true
}

func (h *CartHandlers) user(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if !h.available(ctx, w, false) {
		return nil, false
	}
	return requireUser(ctx, w)
}
