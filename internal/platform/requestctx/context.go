// Package requestctx carries per-request state between the outer HTTP middleware and the handlers
// nested below it.
package requestctx

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	scopeKey
)

var noop = zap.NewNop()

// TraceInfo identifies the trace a request belongs to.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// Resource returns the Cloud Logging trace resource name, or "" without a project.
func (t TraceInfo) Resource() string {
	if t.ProjectID == "" || t.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", t.ProjectID, t.TraceID)
}

// Scope is created once per request by the outermost middleware. Inner layers record what they learn
// about the request (trace, authenticated actor) so outer layers can read it after the handler returns.
type Scope struct {
	mu      sync.RWMutex
	trace   TraceInfo
	traced  bool
	actorID string
	roles   []string
}

// Begin attaches a fresh Scope unless one is already present.
func Begin(ctx context.Context) (context.Context, *Scope) {
	if scope := ScopeFrom(ctx); scope != nil {
		return ctx, scope
	}
	scope := &Scope{}
	return context.WithValue(ctx, scopeKey, scope), scope
}

// ScopeFrom returns the request Scope or nil.
func ScopeFrom(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	scope, _ := ctx.Value(scopeKey).(*Scope)
	return scope
}

// SetActor records the authenticated caller. It is a no-op outside a Scope.
func SetActor(ctx context.Context, uid string, roles []string) {
	scope := ScopeFrom(ctx)
	if scope == nil {
		return
	}
	scope.mu.Lock()
	scope.actorID = uid
	scope.roles = append([]string(nil), roles...)
	scope.mu.Unlock()
}

// Actor returns the caller recorded by SetActor.
func (s *Scope) Actor() (string, []string) {
	if s == nil {
		return "", nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actorID, append([]string(nil), s.roles...)
}

// WithTrace records trace identifiers on the request Scope, creating one when absent.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, scope := Begin(ctx)
	scope.mu.Lock()
	scope.trace = info
	scope.traced = true
	scope.mu.Unlock()
	return ctx
}

// Trace returns the trace recorded for the request.
func Trace(ctx context.Context) (TraceInfo, bool) {
	scope := ScopeFrom(ctx)
	if scope == nil {
		return TraceInfo{}, false
	}
	scope.mu.RLock()
	defer scope.mu.RUnlock()
	return scope.trace, scope.traced
}

// TraceID is shorthand for the recorded trace id.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithLogger stores a request logger. Each layer may narrow it with more fields.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noop
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the request logger or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noop
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noop
}

// HasLogger reports whether a request logger was installed.
func HasLogger(ctx context.Context) bool {
	return Logger(ctx) != noop
}
