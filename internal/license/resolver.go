package license

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apierrors "kdsops/internal/errors"
	"kdsops/internal/store"
	"kdsops/pkg/contracts/domain"
)

// TenantSource is the slice of the tenant store the resolver needs.
type TenantSource interface {
	OutletByLicenseKey(ctx context.Context, code string) (*domain.Outlet, error)
	ChainByMasterKey(ctx context.Context, code string) (*domain.Chain, error)
	LicenseKeyByCode(ctx context.Context, code string) (*domain.LicenseKey, error)
	OutletByID(ctx context.Context, id string) (*domain.Outlet, error)
	ChainByID(ctx context.Context, id string) (*domain.Chain, error)
}

// Resolution is the resolver's full answer for one code. AlreadyUsed is the
// consumption state at resolution time; callers must not assume it still
// holds by the time they write (the activation saga re-checks with a
// compare-and-set).
type Resolution struct {
	Ref          domain.TenantRef
	AlreadyUsed  bool
	TenantActive bool
	PlanEndDate  *time.Time

	// Ledger is the secondary-ledger row for the code, if one exists.
	// Present even when the primary source matched, because step (b) of the
	// saga must consume it.
	Ledger *domain.LicenseKey

	// Exactly one of these is set, matching Ref.Kind.
	Outlet *domain.Outlet
	Chain  *domain.Chain
}

// Resolver maps an opaque code to the tenant it activates.
type Resolver struct {
	source TenantSource
	logger *slog.Logger
}

// NewResolver creates a resolver over the given tenant source
func NewResolver(source TenantSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger.With(slog.String("component", "license_resolver")),
	}
}

// Resolve searches the primary sources (outlet rows, then chain rows) and
// falls back to the key ledger. Returns ErrInvalidLicense when the code is
// absent everywhere and ErrLicenseUnlinked when a ledger row exists but
// references no tenant.
func (r *Resolver) Resolve(ctx context.Context, code string) (*Resolution, error) {
	// The ledger row is fetched regardless of which source matches: the
	// consume step needs it, and its absence is not an error.
	ledger, err := r.source.LicenseKeyByCode(ctx, code)
	if err != nil && !errors.Is(err, store.ErrNoRows) {
		return nil, err
	}

	outlet, err := r.source.OutletByLicenseKey(ctx, code)
	if err == nil {
		return &Resolution{
			Ref:          domain.TenantRef{Kind: domain.TenantOutlet, ID: outlet.ID, Name: outlet.OutletName},
			AlreadyUsed:  outlet.LicenseKeyUsed,
			TenantActive: outlet.IsActive,
			PlanEndDate:  outlet.PlanEndDate,
			Ledger:       ledger,
			Outlet:       outlet,
		}, nil
	}
	if !errors.Is(err, store.ErrNoRows) {
		return nil, err
	}

	chain, err := r.source.ChainByMasterKey(ctx, code)
	if err == nil {
		return &Resolution{
			Ref:          domain.TenantRef{Kind: domain.TenantChain, ID: chain.ID, Name: chain.ChainName},
			AlreadyUsed:  chain.MasterKeyUsed,
			TenantActive: chain.IsActive,
			PlanEndDate:  chain.PlanEndDate,
			Ledger:       ledger,
			Chain:        chain,
		}, nil
	}
	if !errors.Is(err, store.ErrNoRows) {
		return nil, err
	}

	if ledger == nil {
		return nil, apierrors.ErrInvalidLicense
	}
	if ledger.ExpiresAt != nil && ledger.ExpiresAt.Before(time.Now()) {
		r.logger.InfoContext(ctx, "expired license key rejected",
			slog.String("key_id", ledger.ID))
		return nil, apierrors.ErrInvalidLicense
	}

	return r.resolveFromLedger(ctx, ledger)
}

// resolveFromLedger loads the tenant a ledger row points at. A row with no
// tenant reference, or whose referenced tenant is gone, is unlinked: the
// code is known, so this must never degrade into an invalid-key answer.
func (r *Resolver) resolveFromLedger(ctx context.Context, ledger *domain.LicenseKey) (*Resolution, error) {
	switch {
	case ledger.OutletID != nil:
		outlet, err := r.source.OutletByID(ctx, *ledger.OutletID)
		if errors.Is(err, store.ErrNoRows) {
			return nil, apierrors.ErrLicenseUnlinked
		}
		if err != nil {
			return nil, err
		}
		return &Resolution{
			Ref:          domain.TenantRef{Kind: domain.TenantOutlet, ID: outlet.ID, Name: outlet.OutletName},
			AlreadyUsed:  ledger.IsUsed,
			TenantActive: outlet.IsActive,
			PlanEndDate:  outlet.PlanEndDate,
			Ledger:       ledger,
			Outlet:       outlet,
		}, nil

	case ledger.ChainID != nil:
		chain, err := r.source.ChainByID(ctx, *ledger.ChainID)
		if errors.Is(err, store.ErrNoRows) {
			return nil, apierrors.ErrLicenseUnlinked
		}
		if err != nil {
			return nil, err
		}
		return &Resolution{
			Ref:          domain.TenantRef{Kind: domain.TenantChain, ID: chain.ID, Name: chain.ChainName},
			AlreadyUsed:  ledger.IsUsed,
			TenantActive: chain.IsActive,
			PlanEndDate:  chain.PlanEndDate,
			Ledger:       ledger,
			Chain:        chain,
		}, nil

	default:
		return nil, apierrors.ErrLicenseUnlinked
	}
}
