package middleware

import (
	"context"
	"net/http"
	"slices"
)

type principalKey struct{}

// Principal is the caller identified by an API key.
type Principal struct {
	OwnerID   string
	KeyPrefix string
	Scopes    []string
}

// HasScope reports whether the key was granted scope.
func (p Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal set by Authenticate.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// SetOwnerID stores a principal carrying only an owner.
func SetOwnerID(ctx context.Context, owner string) context.Context {
	return WithPrincipal(ctx, Principal{OwnerID: owner})
}

// GetOwnerID returns the authenticated owner.
func GetOwnerID(r *http.Request) (string, bool) {
	p, ok := PrincipalFrom(r.Context())
	return p.OwnerID, ok
}
