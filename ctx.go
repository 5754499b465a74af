package emailauth

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the PrincipalContext in the given context
func WithPrincipal(ctx context.Context, principal *PrincipalContext) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*PrincipalContext, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*PrincipalContext)
	return raw, ok
}

// PrincipalFromRouterContext extracts the principal stored by the
// ProtectedRoute middleware.
func PrincipalFromRouterContext(c router.Context) (*PrincipalContext, bool) {
	raw := c.Locals(PrincipalLocalsKey)
	if raw == nil {
		return nil, false
	}
	principal, ok := raw.(*PrincipalContext)
	return principal, ok
}
