package carttoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/termitepreston/wigvana/internal/platform/config"
)

const minSecretLength = 32

var (
	// ErrInvalidToken is returned for malformed, expired, or tampered cart tokens.
	ErrInvalidToken = errors.New("carttoken: invalid token")
	// ErrSecretTooShort indicates the signing secret does not meet the minimum length.
	ErrSecretTooShort = errors.New("carttoken: secret must be at least 32 bytes")
)

// Claims identifies the anonymous session and the cart a token grants access to.
type Claims struct {
	AnonymousID string
	CartID      string
	ExpiresAt   time.Time
}

type tokenClaims struct {
	CartID string `json:"cid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies anonymous cart tokens with HS256.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithClock injects a custom clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer builds an Issuer from configuration.
func NewIssuer(cfg config.CartTokenConfig, opts ...Option) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}
	issuer := &Issuer{
		secret: []byte(secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	if issuer.ttl <= 0 {
		issuer.ttl = 30 * 24 * time.Hour
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer, nil
}

// Issue returns a signed token binding the anonymous id to the cart.
func (i *Issuer) Issue(anonymousID, cartID string) (string, time.Time, error) {
	anonymousID = strings.TrimSpace(anonymousID)
	cartID = strings.TrimSpace(cartID)
	if anonymousID == "" || cartID == "" {
		return "", time.Time{}, errors.New("carttoken: anonymous id and cart id are required")
	}

	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)
	claims := tokenClaims{
		CartID: cartID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   anonymousID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("carttoken: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the token signature, issuer, and expiry.
func (i *Issuer) Parse(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	claims := &tokenClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := i.now()
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return Claims{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.CartID) == "" {
		return Claims{}, fmt.Errorf("%w: missing subject or cart", ErrInvalidToken)
	}

	return Claims{
		AnonymousID: claims.Subject,
		CartID:      claims.CartID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
