// Package auth implements credential authentication against the identity
// provider and per-request role guards over provider-issued tokens.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apierrors "kdsops/internal/errors"
	"kdsops/internal/identity"
	"kdsops/internal/store"
	"kdsops/pkg/contracts/domain"
)

// IdentityClient is the slice of the identity provider the gateway uses.
type IdentityClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, *identity.User, error)
}

// TenantStore is the slice of the tenant store the gateway and guards read.
type TenantStore interface {
	OutletByID(ctx context.Context, id string) (*domain.Outlet, error)
	ChainByID(ctx context.Context, id string) (*domain.Chain, error)
	SectionManagerByAuthUserID(ctx context.Context, authUserID string) (*domain.SectionManager, error)
	AdminByID(ctx context.Context, id string) (*domain.AdminUser, error)
}

// Result is a fully validated login: the provider session plus the tenant
// records the identity is linked to.
type Result struct {
	Session *domain.Session
	User    *identity.User
	Role    string

	Outlet  *domain.Outlet
	Chain   *domain.Chain
	Section *domain.SectionManager
}

// Gateway authenticates credentials and enforces the tenant-level checks a
// valid provider session alone does not cover.
type Gateway struct {
	identity IdentityClient
	store    TenantStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewGateway creates an authentication gateway
func NewGateway(identityClient IdentityClient, tenantStore TenantStore, logger *slog.Logger) *Gateway {
	return &Gateway{
		identity: identityClient,
		store:    tenantStore,
		logger:   logger.With(slog.String("component", "auth_gateway")),
		now:      time.Now,
	}
}

// Authenticate exchanges credentials for a session and validates the linked
// tenant. The checks run in a fixed order and the first failure wins:
// credentials, tenant linkage, tenant existence, tenant active flag, plan
// expiry, then sub-account standing.
func (g *Gateway) Authenticate(ctx context.Context, email, password string) (*Result, error) {
	session, user, err := g.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	result, err := g.Validate(ctx, user)
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// SignIn performs only the credential exchange, with no tenant checks.
// Callers that must act on the identity before the tenant is in good
// standing (the activation saga) use this and run Validate afterwards.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*domain.Session, *identity.User, error) {
	session, user, err := g.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, nil, apierrors.ErrInvalidCredentials
		}
		g.logger.ErrorContext(ctx, "credential exchange failed", slog.String("error", err.Error()))
		return nil, nil, apierrors.ErrInternalServer
	}
	return session, user, nil
}

// Validate applies the tenant-level checks to an already authenticated
// identity: linkage, existence, active flag, plan expiry, sub-account
// standing.
func (g *Gateway) Validate(ctx context.Context, user *identity.User) (*Result, error) {
	result := &Result{User: user, Role: user.Role()}

	switch result.Role {
	case domain.RoleOutletOwner, domain.RoleSectionManager:
		outletID := user.MetaString(domain.OutletIDKey)
		if outletID == "" {
			return nil, apierrors.ErrUnlinkedIdentity
		}
		outlet, err := loadActiveOutlet(ctx, g.store, g.now(), outletID)
		if err != nil {
			return nil, err
		}
		result.Outlet = outlet

	case domain.RoleChainOwner:
		chainID := user.MetaString(domain.ChainIDKey)
		if chainID == "" {
			return nil, apierrors.ErrUnlinkedIdentity
		}
		chain, err := loadActiveChain(ctx, g.store, g.now(), chainID)
		if err != nil {
			return nil, err
		}
		result.Chain = chain

	default:
		return nil, apierrors.ErrUnlinkedIdentity
	}

	if result.Role == domain.RoleSectionManager {
		section, err := g.store.SectionManagerByAuthUserID(ctx, user.ID)
		if errors.Is(err, store.ErrNoRows) {
			return nil, apierrors.ErrSubAccountDeactivated
		}
		if err != nil {
			return nil, apierrors.ErrInternalServer
		}
		if !section.IsActive {
			return nil, apierrors.ErrSubAccountDeactivated
		}
		result.Section = section
	}

	g.logger.InfoContext(ctx, "identity validated",
		slog.String("identity_id", user.ID),
		slog.String("role", result.Role))
	return result, nil
}

// loadActiveOutlet loads an outlet and applies the standing checks shared by
// the gateway and the outlet guard.
func loadActiveOutlet(ctx context.Context, s TenantStore, now time.Time, outletID string) (*domain.Outlet, error) {
	outlet, err := s.OutletByID(ctx, outletID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, apierrors.ErrTenantNotFound
	}
	if err != nil {
		return nil, apierrors.ErrInternalServer
	}
	if !outlet.IsActive {
		return nil, apierrors.ErrTenantInactive
	}
	if planExpired(outlet.PlanEndDate, now) {
		return nil, apierrors.ErrPlanExpired
	}
	return outlet, nil
}

func loadActiveChain(ctx context.Context, s TenantStore, now time.Time, chainID string) (*domain.Chain, error) {
	chain, err := s.ChainByID(ctx, chainID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, apierrors.ErrTenantNotFound
	}
	if err != nil {
		return nil, apierrors.ErrInternalServer
	}
	if !chain.IsActive {
		return nil, apierrors.ErrTenantInactive
	}
	if planExpired(chain.PlanEndDate, now) {
		return nil, apierrors.ErrPlanExpired
	}
	return chain, nil
}

// planExpired treats a missing end date as a plan that never expires.
func planExpired(end *time.Time, now time.Time) bool {
	return end != nil && end.Before(now)
}
