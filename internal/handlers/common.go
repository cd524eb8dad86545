package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/httpx"
	"github.com/termitepreston/wigvana/internal/platform/pagination"
	"github.com/termitepreston/wigvana/internal/services"
)

const defaultBodyLimit = 16 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a bounded body into dst. When optional is set an empty body leaves dst untouched.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, optional bool, dst any) bool {
	body, err := readLimitedBody(r, limit)
	switch {
	case errors.Is(err, errEmptyBody) && optional:
		return true
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return false
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func writeNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// requireUser returns the authenticated identity or writes 401.
func requireUser(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// requireRole returns the identity when it carries the role, writing 401 or 403 otherwise.
func requireRole(ctx context.Context, w http.ResponseWriter, role string) (*auth.Identity, bool) {
	identity, ok := requireUser(ctx, w)
	if !ok {
		return nil, false
	}
	if !identity.HasRole(role) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient role", http.StatusForbidden))
		return nil, false
	}
	return identity, true
}

func parseListParams(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.OrderListFilter, bool) {
	params, err := pagination.FromRequest(r, pagination.Options{AllowedStatuses: orderStatusValues()})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.OrderListFilter{}, false
	}
	filter := services.OrderListFilter{Pagination: params.Pagination()}
	for _, status := range params.Statuses {
		filter.Statuses = append(filter.Statuses, services.OrderStatus(status))
	}
	return filter, true
}

type shortfallPayload struct {
	VariantID string `json:"variant_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// writeServiceError maps the service error taxonomy onto HTTP responses. resource prefixes the
// not-found and conflict codes, e.g. "order_not_found".
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, resource string) {
	if err == nil {
		return
	}
	var short *services.InsufficientStockError
	switch {
	case errors.As(err, &short):
		details := make([]shortfallPayload, 0, len(short.Shortfalls))
		for _, s := range short.Shortfalls {
			details = append(details, shortfallPayload{VariantID: s.VariantID, Requested: s.Requested, Available: s.Available})
		}
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "requested quantity exceeds available stock", http.StatusBadRequest).
			WithDetails(map[string]any{"shortfalls": details}))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(resource+"_not_found", resource+" not found", http.StatusNotFound))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to act on this "+resource, http.StatusForbidden))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError(resource+"_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBadRequest):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "backing store unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError(resource+"_error", "unexpected error", http.StatusInternalServerError))
	}
}
