package observability

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/termitepreston/wigvana/internal/platform/httpx"
	"github.com/termitepreston/wigvana/internal/platform/requestctx"
)

// loggedParams are the route parameters copied onto the access log.
var loggedParams = map[string]string{
	"orderID":  "order_id",
	"itemID":   "cart_line_id",
	"returnID": "return_id",
}

// InjectLoggerMiddleware opens the request scope and installs logger for everything below it.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := requestctx.Begin(r.Context())
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(ctx, logger)))
		})
	}
}

// RequestLoggerMiddleware writes one access log entry per request once the handler returns. The entry
// carries the matched route, the authenticated actor and the order or cart line addressed.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, scope := requestctx.Begin(r.Context())
			logger := requestctx.Logger(ctx).With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", clip(r.Method, 16)),
			)
			if info, ok := requestctx.Trace(ctx); ok {
				if info.ProjectID == "" {
					info.ProjectID = projectID
				}
				logger = logger.With(zap.String("trace_id", info.TraceID))
				if resource := info.Resource(); resource != "" {
					logger = logger.With(zap.String("logging.googleapis.com/trace", resource))
				}
			}
			ctx = requestctx.WithLogger(ctx, logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				rec := recover()
				status := ww.Status()
				switch {
				case rec != nil:
					status = http.StatusInternalServerError
				case status == 0:
					status = http.StatusOK
				}
				fields := []zap.Field{
					zap.String("route", clip(routePattern(r), 180)),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.Int("bytes", ww.BytesWritten()),
				}
				if ip := clientAddress(r); ip != "" {
					fields = append(fields, zap.String("remote_ip", ip))
				}
				if uid, roles := scope.Actor(); uid != "" {
					fields = append(fields, zap.String("actor_id", clip(uid, 128)), zap.Strings("actor_roles", roles))
				}
				fields = append(fields, routeParamFields(r)...)

				level := zapcore.InfoLevel
				switch {
				case status >= http.StatusInternalServerError:
					level = zapcore.ErrorLevel
				case status >= http.StatusBadRequest:
					level = zapcore.WarnLevel
				}
				logger.Log(level, "request completed", fields...)
				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 JSON error and logs the stack.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger := fallback
				if requestctx.HasLogger(ctx) {
					logger = requestctx.Logger(ctx)
				}
				logger.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func routeParamFields(r *http.Request) []zap.Field {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var fields []zap.Field
	for i, key := range rctx.URLParams.Keys {
		if name, ok := loggedParams[key]; ok && i < len(rctx.URLParams.Values) {
			fields = append(fields, zap.String(name, clip(rctx.URLParams.Values[i], 64)))
		}
	}
	return fields
}

func clientAddress(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return clip(addr, 64)
}

// clip strips control characters and caps the rune count, keeping request-supplied values safe to log.
func clip(value string, limit int) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if len(out) == limit {
			break
		}
		if !unicode.IsControl(r) {
			out = append(out, r)
		}
	}
	return string(out)
}
