package carttoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/termitepreston/wigvana/internal/platform/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T, now *time.Time) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(config.CartTokenConfig{Secret: testSecret, Issuer: "wigvana-carts", TTL: time.Hour},
		WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func TestIssuerRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)

	token, expiresAt, err := issuer.Issue("anon-1", "cart_01")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.AnonymousID != "anon-1" || claims.CartID != "cart_01" {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestIssuerRejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)

	token, _, err := issuer.Issue("anon-1", "cart_01")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestIssuerRejectsTamperedTokens(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)
	token, _, err := issuer.Issue("anon-1", "cart_01")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewIssuer(config.CartTokenConfig{Secret: strings.Repeat("z", 32), Issuer: "wigvana-carts"},
		WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	forged, _, err := other.Issue("anon-1", "cart_02")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "anon-1", "cid": "cart_01", "iss": "wigvana-carts", "exp": now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"alg none":     unsigned,
		"truncated":    token[:len(token)-4],
	}
	for name, candidate := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Parse(candidate); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
		})
	}
}

func TestNewIssuerValidation(t *testing.T) {
	if _, err := NewIssuer(config.CartTokenConfig{Secret: "short"}); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected short secret error, got %v", err)
	}
	now := time.Now()
	issuer := newTestIssuer(t, &now)
	if _, _, err := issuer.Issue("", "cart"); err == nil {
		t.Fatalf("expected error for empty anonymous id")
	}
}
