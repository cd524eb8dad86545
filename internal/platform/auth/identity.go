package auth

import (
	"context"
	"strings"
)

// Marketplace roles. Every signed-in account is a buyer; seller and admin are granted by custom claims.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

var knownRoles = map[string]bool{RoleBuyer: true, RoleSeller: true, RoleAdmin: true}

// Identity is the verified caller attached to the request context.
type Identity struct {
	UID   string
	Roles []string
}

// HasRole reports whether the identity was granted role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller may act on any order.
func (i *Identity) IsAdmin() bool { return i.HasRole(RoleAdmin) }

// SellerID is the store the caller operates. Sellers are keyed by uid; non-sellers get "".
func (i *Identity) SellerID() string {
	if !i.HasRole(RoleSeller) {
		return ""
	}
	return i.UID
}

type identityKey struct{}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// grantRoles keeps the known roles from claimed, always including the buyer role.
func grantRoles(claimed []string) []string {
	roles := []string{RoleBuyer}
	for _, role := range claimed {
		role = normaliseRole(role)
		if !knownRoles[role] {
			continue
		}
		dup := false
		for _, have := range roles {
			if have == role {
				dup = true
				break
			}
		}
		if !dup {
			roles = append(roles, role)
		}
	}
	return roles
}
