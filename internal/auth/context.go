package auth

import (
	"context"

	"kdsops/pkg/contracts/domain"
)

type contextKey string

const principalKey contextKey = "auth.principal"

// Principal is the authenticated caller surfaced into the request context by
// the role guards. Tenant pointers are populated per role: Outlet for outlet
// owners and section managers, Chain for chain owners, neither for admins.
type Principal struct {
	UserID string
	Email  string
	Role   string
	Token  string

	OutletID  string
	ChainID   string
	SectionID string

	Outlet *domain.Outlet
	Chain  *domain.Chain
}

// WithPrincipal attaches the principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, or nil when the
// request did not pass through a role guard.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
