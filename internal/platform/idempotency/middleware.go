package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	maxKeyLength      = 255
)

// Logger receives store failures that cannot be surfaced to the client.
type Logger interface {
	Printf(format string, args ...any)
}

// ScopeFunc names the party that owns a key. An empty scope runs the request without idempotency.
type ScopeFunc func(*http.Request) string

// PrincipalScope scopes keys to the authenticated caller.
func PrincipalScope(r *http.Request) string {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || identity.UID == "" {
		return ""
	}
	return "uid:" + identity.UID
}

// ClientScope scopes authenticated callers by uid and anonymous callers by client address plus the
// session nonce they send in sessionHeader. Anonymous requests without the nonce are not deduplicated.
func ClientScope(sessionHeader string) ScopeFunc {
	sessionHeader = strings.TrimSpace(sessionHeader)
	return func(r *http.Request) string {
		if scope := PrincipalScope(r); scope != "" {
			return scope
		}
		if sessionHeader == "" {
			return ""
		}
		nonce := strings.TrimSpace(r.Header.Get(sessionHeader))
		if nonce == "" || len(nonce) > maxKeyLength {
			return ""
		}
		return "client:" + remoteHost(r) + "|" + nonce
	}
}

type middlewareConfig struct {
	headerName string
	ttl        time.Duration
	methods    map[string]bool
	scope      ScopeFunc
	clock      func() time.Time
	logger     Logger
	optional   bool
}

// MiddlewareOption customises Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the request header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL sets how long completed responses are replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithMethods limits which methods are guarded. Defaults to POST, PUT, PATCH and DELETE.
func WithMethods(methods ...string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		guarded := make(map[string]bool, len(methods))
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				guarded[method] = true
			}
		}
		if len(guarded) > 0 {
			cfg.methods = guarded
		}
	}
}

// WithScope replaces PrincipalScope as the key partition.
func WithScope(scope ScopeFunc) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if scope != nil {
			cfg.scope = scope
		}
	}
}

func WithLogger(logger Logger) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.logger = logger
	}
}

// WithOptionalKey serves requests without a key instead of rejecting them.
func WithOptionalKey() MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.optional = true
	}
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware replays the stored response for a repeated key within the caller's scope. Server errors
// release the key so a retried checkout runs again.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		methods: map[string]bool{
			http.MethodPost:   true,
			http.MethodPut:    true,
			http.MethodPatch:  true,
			http.MethodDelete: true,
		},
		scope: PrincipalScope,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.methods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			switch {
			case key == "" && cfg.optional:
				next.ServeHTTP(w, r)
				return
			case key == "":
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", cfg.headerName+" header is required", http.StatusBadRequest))
				return
			case len(key) > maxKeyLength:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", cfg.headerName+" header is too long", http.StatusBadRequest))
				return
			}

			scope := cfg.scope(r)
			if scope == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
				return
			}

			storageKey := StorageKey(scope, key)
			fingerprint := fingerprintRequest(r, body)

			claim, err := store.Reserve(ctx, storageKey, fingerprint, cfg.clock().UTC(), cfg.ttl)
			switch {
			case errors.Is(err, ErrFingerprintMismatch):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key was already used for a different request", http.StatusConflict))
				return
			case err != nil:
				cfg.logf("idempotency: reserve key %q: %v", key, err)
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "idempotency store unavailable", http.StatusServiceUnavailable))
				return
			}

			switch claim.State {
			case StateReplay:
				replay(w, claim.Response)
				return
			case StateInFlight:
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this idempotency key is still processing", http.StatusConflict))
				return
			}

			buffered := &bufferedWriter{header: make(http.Header)}
			next.ServeHTTP(buffered, r)

			if buffered.statusCode() >= http.StatusInternalServerError {
				if err := store.Release(ctx, storageKey); err != nil {
					cfg.logf("idempotency: release key %q after %d: %v", key, buffered.statusCode(), err)
				}
				buffered.flushTo(w)
				return
			}

			if err := store.Complete(ctx, storageKey, fingerprint, buffered.response(), cfg.clock().UTC(), cfg.ttl); err != nil {
				cfg.logf("idempotency: complete key %q: %v", key, err)
				if err := store.Release(ctx, storageKey); err != nil {
					cfg.logf("idempotency: release key %q: %v", key, err)
				}
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to record idempotent response", http.StatusServiceUnavailable))
				return
			}
			buffered.flushTo(w)
		})
	}
}

func (cfg middlewareConfig) logf(format string, args ...any) {
	if cfg.logger != nil {
		cfg.logger.Printf(format, args...)
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// fingerprintRequest hashes the parts of the request a replay must match.
func fingerprintRequest(r *http.Request, body []byte) string {
	h := sha256.New()
	for _, part := range []string{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Content-Type")} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func replay(w http.ResponseWriter, resp Response) {
	for name, values := range resp.Header {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.Header().Set(replayHeaderName, "true")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// bufferedWriter holds the handler output until the outcome is recorded.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedWriter) response() Response {
	return Response{Status: b.statusCode(), Header: b.header, Body: b.body.Bytes()}
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	w.WriteHeader(b.statusCode())
	_, _ = w.Write(b.body.Bytes())
}
