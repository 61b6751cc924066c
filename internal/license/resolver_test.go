package license

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "kdsops/internal/errors"
	"kdsops/internal/store"
	"kdsops/pkg/contracts/domain"
)

// fakeSource is a function-field stub for the resolver's store slice.
// Unset lookups behave like empty tables.
type fakeSource struct {
	outletByKey  func(code string) (*domain.Outlet, error)
	chainByKey   func(code string) (*domain.Chain, error)
	ledgerByCode func(code string) (*domain.LicenseKey, error)
	outletByID   func(id string) (*domain.Outlet, error)
	chainByID    func(id string) (*domain.Chain, error)
}

func (f *fakeSource) OutletByLicenseKey(_ context.Context, code string) (*domain.Outlet, error) {
	if f.outletByKey != nil {
		return f.outletByKey(code)
	}
	return nil, store.ErrNoRows
}

func (f *fakeSource) ChainByMasterKey(_ context.Context, code string) (*domain.Chain, error) {
	if f.chainByKey != nil {
		return f.chainByKey(code)
	}
	return nil, store.ErrNoRows
}

func (f *fakeSource) LicenseKeyByCode(_ context.Context, code string) (*domain.LicenseKey, error) {
	if f.ledgerByCode != nil {
		return f.ledgerByCode(code)
	}
	return nil, store.ErrNoRows
}

func (f *fakeSource) OutletByID(_ context.Context, id string) (*domain.Outlet, error) {
	if f.outletByID != nil {
		return f.outletByID(id)
	}
	return nil, store.ErrNoRows
}

func (f *fakeSource) ChainByID(_ context.Context, id string) (*domain.Chain, error) {
	if f.chainByID != nil {
		return f.chainByID(id)
	}
	return nil, store.ErrNoRows
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestResolveOutletPrimary(t *testing.T) {
	source := &fakeSource{
		outletByKey: func(code string) (*domain.Outlet, error) {
			return &domain.Outlet{
				ID:             "out-1",
				OutletName:     "Harbor Grill",
				LicenseKey:     code,
				LicenseKeyUsed: false,
				IsActive:       false,
			}, nil
		},
	}
	r := NewResolver(source, testLogger())

	res, err := r.Resolve(context.Background(), "KDS-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantOutlet, res.Ref.Kind)
	assert.Equal(t, "out-1", res.Ref.ID)
	assert.Equal(t, "Harbor Grill", res.Ref.Name)
	assert.False(t, res.AlreadyUsed)
	assert.False(t, res.TenantActive)
	assert.Nil(t, res.Ledger)
	require.NotNil(t, res.Outlet)
	assert.Nil(t, res.Chain)
}

func TestResolveChainPrimary(t *testing.T) {
	source := &fakeSource{
		chainByKey: func(code string) (*domain.Chain, error) {
			return &domain.Chain{
				ID:               "chain-1",
				ChainName:        "Harbor Group",
				MasterLicenseKey: code,
				MasterKeyUsed:    true,
				IsActive:         true,
			}, nil
		},
	}
	r := NewResolver(source, testLogger())

	res, err := r.Resolve(context.Background(), "KDSM-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantChain, res.Ref.Kind)
	assert.True(t, res.AlreadyUsed)
	assert.True(t, res.TenantActive)
	require.NotNil(t, res.Chain)
}

func TestResolvePrimaryWinsOverLedger(t *testing.T) {
	// Same code in both sources with contradictory consumption state. The
	// outlet row must decide; the ledger row is still carried along.
	source := &fakeSource{
		outletByKey: func(code string) (*domain.Outlet, error) {
			return &domain.Outlet{ID: "out-1", OutletName: "Harbor Grill", LicenseKeyUsed: false}, nil
		},
		ledgerByCode: func(code string) (*domain.LicenseKey, error) {
			return &domain.LicenseKey{ID: "key-1", LicenseKey: code, IsUsed: true}, nil
		},
	}
	r := NewResolver(source, testLogger())

	res, err := r.Resolve(context.Background(), "KDS-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.False(t, res.AlreadyUsed)
	require.NotNil(t, res.Ledger)
	assert.Equal(t, "key-1", res.Ledger.ID)
}

func TestResolveLedgerFallback(t *testing.T) {
	source := &fakeSource{
		ledgerByCode: func(code string) (*domain.LicenseKey, error) {
			return &domain.LicenseKey{
				ID:         "key-1",
				LicenseKey: code,
				OutletID:   strPtr("out-9"),
				IsUsed:     true,
			}, nil
		},
		outletByID: func(id string) (*domain.Outlet, error) {
			return &domain.Outlet{ID: id, OutletName: "Dockside", IsActive: true}, nil
		},
	}
	r := NewResolver(source, testLogger())

	res, err := r.Resolve(context.Background(), "KDS-EEEE-FFFF-GGGG-HHHH")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantOutlet, res.Ref.Kind)
	assert.Equal(t, "out-9", res.Ref.ID)
	assert.True(t, res.AlreadyUsed)
	assert.True(t, res.TenantActive)
}

func TestResolveLedgerFallbackChain(t *testing.T) {
	source := &fakeSource{
		ledgerByCode: func(code string) (*domain.LicenseKey, error) {
			return &domain.LicenseKey{ID: "key-2", LicenseKey: code, ChainID: strPtr("chain-4")}, nil
		},
		chainByID: func(id string) (*domain.Chain, error) {
			return &domain.Chain{ID: id, ChainName: "Dockside Group"}, nil
		},
	}
	r := NewResolver(source, testLogger())

	res, err := r.Resolve(context.Background(), "KDSM-EEEE-FFFF-GGGG-HHHH")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantChain, res.Ref.Kind)
	assert.Equal(t, "chain-4", res.Ref.ID)
	assert.False(t, res.AlreadyUsed)
}

func TestResolveUnknownCode(t *testing.T) {
	r := NewResolver(&fakeSource{}, testLogger())

	_, err := r.Resolve(context.Background(), "KDS-ZZZZ-ZZZZ-ZZZZ-ZZZZ")
	assert.ErrorIs(t, err, apierrors.ErrInvalidLicense)
}

func TestResolveUnlinkedLedgerRow(t *testing.T) {
	tests := []struct {
		name   string
		source *fakeSource
	}{
		{
			name: "no tenant reference",
			source: &fakeSource{
				ledgerByCode: func(code string) (*domain.LicenseKey, error) {
					return &domain.LicenseKey{ID: "key-1", LicenseKey: code}, nil
				},
			},
		},
		{
			name: "referenced outlet gone",
			source: &fakeSource{
				ledgerByCode: func(code string) (*domain.LicenseKey, error) {
					return &domain.LicenseKey{ID: "key-1", LicenseKey: code, OutletID: strPtr("missing")}, nil
				},
			},
		},
		{
			name: "referenced chain gone",
			source: &fakeSource{
				ledgerByCode: func(code string) (*domain.LicenseKey, error) {
					return &domain.LicenseKey{ID: "key-1", LicenseKey: code, ChainID: strPtr("missing")}, nil
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.source, testLogger())
			_, err := r.Resolve(context.Background(), "KDS-AAAA-BBBB-CCCC-DDDD")
			assert.ErrorIs(t, err, apierrors.ErrLicenseUnlinked)
		})
	}
}

func TestResolveExpiredLedgerKey(t *testing.T) {
	source := &fakeSource{
		ledgerByCode: func(code string) (*domain.LicenseKey, error) {
			return &domain.LicenseKey{
				ID:         "key-1",
				LicenseKey: code,
				OutletID:   strPtr("out-1"),
				ExpiresAt:  timePtr(time.Now().Add(-time.Hour)),
			}, nil
		},
		outletByID: func(id string) (*domain.Outlet, error) {
			return &domain.Outlet{ID: id}, nil
		},
	}
	r := NewResolver(source, testLogger())

	_, err := r.Resolve(context.Background(), "KDS-AAAA-BBBB-CCCC-DDDD")
	assert.ErrorIs(t, err, apierrors.ErrInvalidLicense)
}
