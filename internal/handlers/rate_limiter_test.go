package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFixedWindowLimiter(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	limiter := newFixedWindowLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first two requests to pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected third request to be limited")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected other keys to have their own window")
	}

	now = now.Add(time.Minute + time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected window reset")
	}
}

func TestNewFixedWindowLimiterDisabled(t *testing.T) {
	if newFixedWindowLimiter(0, time.Minute, nil) != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := limitByClientIP(nil)(next)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected passthrough, got %d", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4431"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected host only, got %q", got)
	}
	req.RemoteAddr = "not-a-hostport"
	if got := clientIP(req); got != "not-a-hostport" {
		t.Fatalf("expected raw address, got %q", got)
	}
}
