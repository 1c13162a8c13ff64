package shared

import "context"

// Principal describes the authenticated actor for the duration of a request.
// It is resolved once by the gateway middleware and never mutated afterwards.
type Principal struct {
	ID        string
	CompanyID string
	Role      string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
