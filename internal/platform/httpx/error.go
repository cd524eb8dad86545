// Package httpx holds the JSON response helpers shared by the commerce handlers and middleware.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/termitepreston/wigvana/internal/platform/requestctx"
)

const (
	maxCodeLen    = 64
	maxMessageLen = 512
)

// reservedFields cannot be overwritten by error details.
var reservedFields = map[string]bool{"error": true, "message": true, "status": true, "request_id": true, "trace_id": true}

// Error is an API failure. Code is a stable snake_case identifier clients branch on; Details are
// merged into the top level of the JSON body.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError builds an Error. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{Code: clean(code, maxCodeLen), Message: clean(message, maxMessageLen), Status: status}
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// WithDetails returns a copy carrying extra fields such as stock shortfalls.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		if !reservedFields[k] {
			merged[k] = v
		}
	}
	e.Details = merged
	return e
}

// WriteError renders err with the request and trace ids of ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := make(map[string]any, len(err.Details)+5)
	for k, v := range err.Details {
		body[k] = v
	}
	body["error"] = err.Code
	body["message"] = err.Message
	body["status"] = status
	if id := clean(middleware.GetReqID(ctx), 128); id != "" {
		body["request_id"] = id
	}
	if id := clean(requestctx.TraceID(ctx), 64); id != "" {
		body["trace_id"] = id
	}
	WriteJSON(w, status, body)
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// clean drops control characters, collapses whitespace and caps the rune count.
func clean(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	runes, space := 0, false
	for _, r := range strings.TrimSpace(value) {
		if runes >= limit {
			break
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
			runes++
		}
		space = false
		b.WriteRune(r)
		runes++
	}
	return b.String()
}
