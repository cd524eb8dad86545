package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/termitepreston/wigvana/internal/platform/httpx"
)

type rateLimiter interface {
	Allow(key string) bool
}

// fixedWindowLimiter allows limit requests per key per window.
type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	slots  map[string]windowSlot
}

type windowSlot struct {
	count int
	reset time.Time
}

func newFixedWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		slots:  make(map[string]windowSlot),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok || now.After(slot.reset) {
		l.slots[key] = windowSlot{count: 1, reset: now.Add(l.window)}
		l.pruneLocked(now)
		return true
	}
	if slot.count >= l.limit {
		return false
	}
	slot.count++
	l.slots[key] = slot
	return true
}

func (l *fixedWindowLimiter) pruneLocked(now time.Time) {
	for key, slot := range l.slots {
		if now.After(slot.reset) {
			delete(l.slots, key)
		}
	}
}

// limitByClientIP rejects requests with 429 once the client address exhausts its window.
func limitByClientIP(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
