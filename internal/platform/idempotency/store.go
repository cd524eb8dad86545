package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long a completed checkout or cart response stays replayable.
const DefaultTTL = 24 * time.Hour

// State is the outcome of claiming a key.
type State int

const (
	// StateAcquired means the caller owns the key and must run the handler.
	StateAcquired State = iota
	// StateReplay means a completed response exists for the key.
	StateReplay
	// StateInFlight means another request holds the key and has not finished.
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateAcquired:
		return "acquired"
	case StateReplay:
		return "replay"
	case StateInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Response is the captured handler output kept for replays.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Claim is returned by Store.Reserve. Response is set only for StateReplay.
type Claim struct {
	State    State
	Response Response
}

// Store persists claims on storage keys derived by StorageKey.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch reports a key reused for a different request body or route.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with a different request")

// replayedHeaders lists the response headers a replay reproduces.
var replayedHeaders = []string{"Content-Type", "Location", "Cache-Control", "Pragma"}

// StorageKey binds a client key to the scope that issued it. Two scopes never share a stored response.
func StorageKey(scope, key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(scope) + "\x00" + strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func keepReplayHeaders(src http.Header) http.Header {
	kept := make(http.Header, len(replayedHeaders))
	for _, name := range replayedHeaders {
		if values := src.Values(name); len(values) > 0 {
			kept[name] = append([]string(nil), values...)
		}
	}
	return kept
}

func cloneResponse(resp Response) Response {
	out := Response{Status: resp.Status, Header: keepReplayHeaders(resp.Header)}
	if len(resp.Body) > 0 {
		out.Body = append([]byte(nil), resp.Body...)
	}
	return out
}

func normaliseTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
