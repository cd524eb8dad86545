package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/termitepreston/wigvana/internal/platform/requestctx"
)

type stubVerifier struct {
	identity *Identity
	err      error
	received string
}

func (s *stubVerifier) Verify(_ context.Context, idToken string) (*Identity, error) {
	s.received = idToken
	return s.identity, s.err
}

type stubIDTokenClient struct {
	token   *firebaseauth.Token
	err     error
	revoked bool
}

func (s *stubIDTokenClient) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

func (s *stubIDTokenClient) VerifyIDTokenAndCheckRevoked(context.Context, string) (*firebaseauth.Token, error) {
	s.revoked = true
	return s.token, s.err
}

func serve(t *testing.T, authn *Authenticator, header string, roles ...string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var seen *Identity
	handler := authn.RequireFirebaseAuth(roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		seen = identity
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/store/orders", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestRequireFirebaseAuthAllowsSeller(t *testing.T) {
	verifier := &stubVerifier{identity: &Identity{UID: "seller-1", Roles: []string{RoleBuyer, RoleSeller}}}

	rr, identity := serve(t, NewAuthenticator(verifier), "Bearer tok-1", RoleSeller)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if verifier.received != "tok-1" {
		t.Fatalf("expected token forwarded, got %q", verifier.received)
	}
	if identity.SellerID() != "seller-1" || identity.IsAdmin() {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestRequireFirebaseAuthRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
		roles  []string
		status int
		code   string
	}{
		{name: "missing header", status: http.StatusUnauthorized, code: "unauthenticated"},
		{name: "basic scheme", header: "Basic abc", status: http.StatusUnauthorized, code: "unauthenticated"},
		{name: "expired", header: "Bearer tok", err: ErrTokenExpired, status: http.StatusUnauthorized, code: "token_expired"},
		{name: "revoked", header: "Bearer tok", err: ErrTokenRevoked, status: http.StatusUnauthorized, code: "token_revoked"},
		{name: "invalid", header: "Bearer tok", err: errors.New("bad signature"), status: http.StatusUnauthorized, code: "invalid_token"},
		{name: "buyer on admin route", header: "Bearer tok", roles: []string{RoleAdmin}, status: http.StatusForbidden, code: "insufficient_role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := &stubVerifier{identity: &Identity{UID: "buyer-1", Roles: []string{RoleBuyer}}, err: tc.err}
			rr, _ := serve(t, NewAuthenticator(verifier), tc.header, tc.roles...)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if got := errorCode(t, rr); got != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, got)
			}
		})
	}
}

func TestRequireFirebaseAuthRecordsActorOnScope(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{identity: &Identity{UID: "admin-1", Roles: []string{RoleBuyer, RoleAdmin}}})
	handler := authn.RequireFirebaseAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ctx, scope := requestctx.Begin(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord-1/refunds", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	uid, roles := scope.Actor()
	if uid != "admin-1" || len(roles) != 2 {
		t.Fatalf("expected actor on scope, got %q %v", uid, roles)
	}
}

func TestFirebaseVerifierMapsClaimsToRoles(t *testing.T) {
	cases := []struct {
		name   string
		claims map[string]any
		want   []string
	}{
		{name: "no claims", claims: nil, want: []string{RoleBuyer}},
		{name: "role list", claims: map[string]any{"role": []any{"Seller", "wizard", "admin"}}, want: []string{RoleBuyer, RoleSeller, RoleAdmin}},
		{name: "comma string", claims: map[string]any{"role": "seller, buyer"}, want: []string{RoleBuyer, RoleSeller}},
		{name: "boolean flags", claims: map[string]any{"admin": true, "seller": false}, want: []string{RoleBuyer, RoleAdmin}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newFirebaseVerifier(&stubIDTokenClient{token: &firebaseauth.Token{UID: "u1", Claims: tc.claims}})
			identity, err := v.Verify(context.Background(), "tok")
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if fmt.Sprint(identity.Roles) != fmt.Sprint(tc.want) {
				t.Fatalf("expected roles %v, got %v", tc.want, identity.Roles)
			}
		})
	}
}

func TestFirebaseVerifierClassifiesFailures(t *testing.T) {
	client := &stubIDTokenClient{err: errors.New("malformed")}
	v := newFirebaseVerifier(client, WithRevocationCheck(), WithRoleClaim("roles"))

	_, err := v.Verify(context.Background(), "tok")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if !client.revoked {
		t.Fatal("expected revocation-checking verification")
	}

	client.err = nil
	client.token = &firebaseauth.Token{}
	if _, err := v.Verify(context.Background(), "tok"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected subject-less token to be invalid, got %v", err)
	}
}
