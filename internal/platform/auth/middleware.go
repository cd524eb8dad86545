package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/termitepreston/wigvana/internal/platform/httpx"
	"github.com/termitepreston/wigvana/internal/platform/requestctx"
)

// TokenVerifier resolves a bearer token to an identity. FirebaseVerifier is the production implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

// Authenticator guards routes with bearer-token authentication and role checks.
type Authenticator struct {
	verifier TokenVerifier
}

// NewAuthenticator returns an Authenticator backed by verifier.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// RequireFirebaseAuth rejects requests without a valid bearer token with 401. When roles are given the
// caller must hold at least one of them, else 403.
func (a *Authenticator) RequireFirebaseAuth(roles ...string) func(http.Handler) http.Handler {
	required := make([]string, 0, len(roles))
	for _, role := range roles {
		if role = normaliseRole(role); role != "" {
			required = append(required, role)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(ctx, w, "unauthenticated", "bearer token required")
				return
			}
			if a == nil || a.verifier == nil {
				httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication is not configured", http.StatusServiceUnavailable))
				return
			}

			identity, err := a.verifier.Verify(ctx, raw)
			switch {
			case errors.Is(err, ErrTokenExpired):
				unauthorized(ctx, w, "token_expired", "id token expired")
				return
			case errors.Is(err, ErrTokenRevoked):
				unauthorized(ctx, w, "token_revoked", "id token revoked")
				return
			case err != nil || identity == nil:
				unauthorized(ctx, w, "invalid_token", "id token invalid")
				return
			}

			requestctx.SetActor(ctx, identity.UID, identity.Roles)
			if len(required) > 0 && !identity.HasAnyRole(required...) {
				httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "requires role "+strings.Join(required, " or "), http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func unauthorized(ctx context.Context, w http.ResponseWriter, code, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	httpx.WriteError(ctx, w, httpx.NewError(code, message, http.StatusUnauthorized))
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
