package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kdsops/internal/auth"
	apierrors "kdsops/internal/errors"
	"kdsops/internal/identity"
	"kdsops/internal/license"
	"kdsops/internal/store"
	"kdsops/pkg/contracts/domain"
)

// AdminStore is the slice of the tenant store the admin service manages.
type AdminStore interface {
	AdminByID(ctx context.Context, id string) (*domain.AdminUser, error)

	CreateLicenseKey(ctx context.Context, key domain.LicenseKey) (*domain.LicenseKey, error)
	ListLicenseKeys(ctx context.Context) ([]domain.LicenseKey, error)
	LicenseKeyByID(ctx context.Context, id string) (*domain.LicenseKey, error)

	CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error)
	ListOutlets(ctx context.Context) ([]domain.Outlet, error)
	OutletByID(ctx context.Context, id string) (*domain.Outlet, error)
	UpdateOutlet(ctx context.Context, outletID string, changes map[string]interface{}) error

	CreateChain(ctx context.Context, chain domain.Chain) (*domain.Chain, error)
	ListChains(ctx context.Context) ([]domain.Chain, error)
	ChainByID(ctx context.Context, id string) (*domain.Chain, error)
	UpdateChain(ctx context.Context, chainID string, changes map[string]interface{}) error
}

// MintKeyInput describes a key to mint. At most one of OutletID and ChainID
// may be set; a key minted with neither stays unlinked until an admin binds
// it, and cannot activate anything before that.
type MintKeyInput struct {
	Kind      domain.KeyKind
	OutletID  *string
	ChainID   *string
	ExpiresAt *time.Time
}

// AdminAuthenticator is the credential exchange the admin login uses.
type AdminAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, *identity.User, error)
}

// AdminService implements administrative provisioning: minting keys and
// managing tenant records.
type AdminService struct {
	store  AdminStore
	auth   AdminAuthenticator
	logger *slog.Logger
}

// NewAdminService creates the admin use cases
func NewAdminService(adminStore AdminStore, authn AdminAuthenticator, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:  adminStore,
		auth:   authn,
		logger: logger.With(slog.String("component", "admin_service")),
	}
}

// Login authenticates an administrator: provider credentials first, then the
// registry row must exist and be active. Roles and registry rows never tell
// the caller apart from each other; every failure past the credential
// exchange is a plain 403.
func (s *AdminService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	session, user, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user.Role() != domain.RoleAdmin {
		return nil, apierrors.ErrForbidden
	}

	admin, err := s.store.AdminByID(ctx, user.ID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, apierrors.ErrForbidden
	}
	if err != nil {
		return nil, apierrors.ErrInternalServer
	}
	if !admin.IsActive {
		return nil, apierrors.ErrForbidden
	}

	s.logger.InfoContext(ctx, "admin login", slog.String("admin_id", user.ID))
	return &auth.Result{Session: session, User: user, Role: domain.RoleAdmin}, nil
}

// MintKey generates a fresh code and records it in the ledger.
func (s *AdminService) MintKey(ctx context.Context, in MintKeyInput) (*domain.LicenseKey, error) {
	if in.OutletID != nil && in.ChainID != nil {
		return nil, apierrors.ErrValidation("outlet_id", "a key may link to an outlet or a chain, not both")
	}
	if in.OutletID != nil {
		if _, err := s.store.OutletByID(ctx, *in.OutletID); err != nil {
			return nil, translateStoreErr(err, "Outlet")
		}
	}
	if in.ChainID != nil {
		if _, err := s.store.ChainByID(ctx, *in.ChainID); err != nil {
			return nil, translateStoreErr(err, "Chain")
		}
	}

	code, err := license.GenerateKey(in.Kind)
	if err != nil {
		s.logger.ErrorContext(ctx, "key generation failed", slog.String("error", err.Error()))
		return nil, apierrors.ErrInternalServer
	}

	key, err := s.store.CreateLicenseKey(ctx, domain.LicenseKey{
		LicenseKey: code,
		KeyType:    in.Kind,
		OutletID:   in.OutletID,
		ChainID:    in.ChainID,
		ExpiresAt:  in.ExpiresAt,
	})
	if err != nil {
		return nil, translateStoreErr(err, "License key")
	}

	s.logger.InfoContext(ctx, "license key minted",
		slog.String("key_id", key.ID),
		slog.String("key_type", string(in.Kind)))
	return key, nil
}

// ListKeys returns every ledger row.
func (s *AdminService) ListKeys(ctx context.Context) ([]domain.LicenseKey, error) {
	return s.store.ListLicenseKeys(ctx)
}

// GetKey fetches one ledger row.
func (s *AdminService) GetKey(ctx context.Context, id string) (*domain.LicenseKey, error) {
	key, err := s.store.LicenseKeyByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "License key")
	}
	return key, nil
}

// CreateOutlet provisions an outlet with an embedded license code. The
// outlet starts inactive; the code activates it at first signup.
func (s *AdminService) CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	code, err := license.GenerateKey(domain.KeyLicense)
	if err != nil {
		s.logger.ErrorContext(ctx, "key generation failed", slog.String("error", err.Error()))
		return nil, apierrors.ErrInternalServer
	}
	outlet.LicenseKey = code

	created, err := s.store.CreateOutlet(ctx, outlet)
	if err != nil {
		return nil, translateStoreErr(err, "Outlet")
	}
	s.logger.InfoContext(ctx, "outlet provisioned",
		slog.String("outlet_id", created.ID),
		slog.String("outlet_name", created.OutletName))
	return created, nil
}

// ListOutlets returns all outlet records.
func (s *AdminService) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	return s.store.ListOutlets(ctx)
}

// GetOutlet fetches one outlet record.
func (s *AdminService) GetOutlet(ctx context.Context, id string) (*domain.Outlet, error) {
	outlet, err := s.store.OutletByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "Outlet")
	}
	return outlet, nil
}

// SetOutletActive suspends or reinstates an outlet. Deactivation does not
// reset the consumed flag: the code stays claimed by whoever activated it.
func (s *AdminService) SetOutletActive(ctx context.Context, id string, active bool) error {
	err := s.store.UpdateOutlet(ctx, id, map[string]interface{}{"is_active": active})
	if err != nil {
		return translateStoreErr(err, "Outlet")
	}
	s.logger.InfoContext(ctx, "outlet standing changed",
		slog.String("outlet_id", id),
		slog.Bool("is_active", active))
	return nil
}

// SetOutletPlan updates the plan window on an outlet.
func (s *AdminService) SetOutletPlan(ctx context.Context, id string, start, end *time.Time) error {
	changes := map[string]interface{}{}
	if start != nil {
		changes["plan_start_date"] = start.UTC().Format(time.RFC3339)
	}
	if end != nil {
		changes["plan_end_date"] = end.UTC().Format(time.RFC3339)
	}
	if len(changes) == 0 {
		return apierrors.ErrValidation("plan_start_date", "at least one of the plan dates is required")
	}
	if err := s.store.UpdateOutlet(ctx, id, changes); err != nil {
		return translateStoreErr(err, "Outlet")
	}
	return nil
}

// CreateChain provisions a chain with a master key. The chain starts
// inactive; the master key activates it at the chain owner's signup.
func (s *AdminService) CreateChain(ctx context.Context, chain domain.Chain) (*domain.Chain, error) {
	code, err := license.GenerateKey(domain.KeyMaster)
	if err != nil {
		s.logger.ErrorContext(ctx, "key generation failed", slog.String("error", err.Error()))
		return nil, apierrors.ErrInternalServer
	}
	chain.MasterLicenseKey = code

	created, err := s.store.CreateChain(ctx, chain)
	if err != nil {
		return nil, translateStoreErr(err, "Chain")
	}
	s.logger.InfoContext(ctx, "chain provisioned",
		slog.String("chain_id", created.ID),
		slog.String("chain_name", created.ChainName))
	return created, nil
}

// ListChains returns all chain records.
func (s *AdminService) ListChains(ctx context.Context) ([]domain.Chain, error) {
	return s.store.ListChains(ctx)
}

// SetChainActive suspends or reinstates a chain.
func (s *AdminService) SetChainActive(ctx context.Context, id string, active bool) error {
	err := s.store.UpdateChain(ctx, id, map[string]interface{}{"is_active": active})
	if err != nil {
		return translateStoreErr(err, "Chain")
	}
	s.logger.InfoContext(ctx, "chain standing changed",
		slog.String("chain_id", id),
		slog.Bool("is_active", active))
	return nil
}

// translateStoreErr maps store lookups to API errors without leaking store
// failure text.
func translateStoreErr(err error, resource string) error {
	if errors.Is(err, store.ErrNoRows) {
		return apierrors.NotFoundError(resource)
	}
	return apierrors.ErrInternalServer
}
