package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/termitepreston/wigvana/internal/platform/config"
)

const (
	defaultRoleClaim     = "role"
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired is returned for ID tokens past their expiry.
	ErrTokenExpired = errors.New("auth: id token expired")
	// ErrTokenRevoked is returned when revocation checks are on and the session was revoked.
	ErrTokenRevoked = errors.New("auth: id token revoked")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("auth: id token invalid")
)

// idTokenClient is the subset of the Admin SDK auth client used here.
type idTokenClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier turns Firebase ID tokens into marketplace identities.
type FirebaseVerifier struct {
	client       idTokenClient
	timeout      time.Duration
	roleClaim    string
	checkRevoked bool
}

// FirebaseOption customises a FirebaseVerifier.
type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout bounds each verification call.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithRoleClaim names the custom claim that lists granted roles.
func WithRoleClaim(claim string) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if claim = strings.TrimSpace(claim); claim != "" {
			v.roleClaim = claim
		}
	}
}

// WithRevocationCheck makes every verification consult the revocation list.
func WithRevocationCheck() FirebaseOption {
	return func(v *FirebaseVerifier) {
		v.checkRevoked = true
	}
}

// NewFirebaseVerifier initialises the Admin SDK for cfg.ProjectID.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("auth: firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: firebase auth client: %w", err)
	}
	return newFirebaseVerifier(client, opts...), nil
}

func newFirebaseVerifier(client idTokenClient, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{client: client, timeout: defaultVerifyTimeout, roleClaim: defaultRoleClaim}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify checks the token signature and expiry and maps its claims to roles.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("auth: firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var (
		token *firebaseauth.Token
		err   error
	)
	if v.checkRevoked {
		token, err = v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	} else {
		token, err = v.client.VerifyIDToken(ctx, idToken)
	}
	switch {
	case err == nil:
	case firebaseauth.IsIDTokenExpired(err):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case firebaseauth.IsIDTokenRevoked(err), firebaseauth.IsUserDisabled(err):
		return nil, fmt.Errorf("%w: %v", ErrTokenRevoked, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if token == nil || strings.TrimSpace(token.UID) == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}
	return &Identity{UID: token.UID, Roles: grantRoles(claimedRoles(token.Claims, v.roleClaim))}, nil
}

// claimedRoles reads roles from the role claim (a string or a list) and from boolean
// "seller" and "admin" claims.
func claimedRoles(claims map[string]any, roleClaim string) []string {
	var roles []string
	switch v := claims[roleClaim].(type) {
	case string:
		roles = append(roles, strings.Split(v, ",")...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
	case []string:
		roles = append(roles, v...)
	}
	for _, flag := range []string{RoleSeller, RoleAdmin} {
		if granted, ok := claims[flag].(bool); ok && granted {
			roles = append(roles, flag)
		}
	}
	return roles
}
