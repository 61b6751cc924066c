package auth

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "kdsops/internal/errors"
	"kdsops/internal/identity"
	"kdsops/internal/store"
	"kdsops/pkg/contracts/domain"
)

type fakeIdentity struct {
	signIn func(email, password string) (*domain.Session, *identity.User, error)
}

func (f *fakeIdentity) SignInWithPassword(_ context.Context, email, password string) (*domain.Session, *identity.User, error) {
	return f.signIn(email, password)
}

type fakeTenantStore struct {
	outletByID   func(id string) (*domain.Outlet, error)
	chainByID    func(id string) (*domain.Chain, error)
	sectionByUID func(authUserID string) (*domain.SectionManager, error)
	adminByID    func(id string) (*domain.AdminUser, error)
}

func (f *fakeTenantStore) OutletByID(_ context.Context, id string) (*domain.Outlet, error) {
	if f.outletByID != nil {
		return f.outletByID(id)
	}
	return nil, store.ErrNoRows
}

func (f *fakeTenantStore) ChainByID(_ context.Context, id string) (*domain.Chain, error) {
	if f.chainByID != nil {
		return f.chainByID(id)
	}
	return nil, store.ErrNoRows
}

func (f *fakeTenantStore) SectionManagerByAuthUserID(_ context.Context, authUserID string) (*domain.SectionManager, error) {
	if f.sectionByUID != nil {
		return f.sectionByUID(authUserID)
	}
	return nil, store.ErrNoRows
}

func (f *fakeTenantStore) AdminByID(_ context.Context, id string) (*domain.AdminUser, error) {
	if f.adminByID != nil {
		return f.adminByID(id)
	}
	return nil, store.ErrNoRows
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func outletOwner(outletID string) *identity.User {
	return &identity.User{
		ID:    "user-1",
		Email: "owner@example.com",
		UserMetadata: map[string]interface{}{
			domain.UserTypeKey: domain.RoleOutletOwner,
			domain.OutletIDKey: outletID,
		},
	}
}

func signInOK(user *identity.User) func(string, string) (*domain.Session, *identity.User, error) {
	return func(string, string) (*domain.Session, *identity.User, error) {
		return &domain.Session{AccessToken: "at", RefreshToken: "rt", TokenType: "bearer"}, user, nil
	}
}

func activeOutlet(id string) *domain.Outlet {
	return &domain.Outlet{ID: id, OutletName: "Harbor Grill", IsActive: true}
}

func TestAuthenticateOutletOwner(t *testing.T) {
	gw := NewGateway(
		&fakeIdentity{signIn: signInOK(outletOwner("out-1"))},
		&fakeTenantStore{outletByID: func(id string) (*domain.Outlet, error) {
			return activeOutlet(id), nil
		}},
		testLogger(),
	)

	result, err := gw.Authenticate(context.Background(), "owner@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOutletOwner, result.Role)
	require.NotNil(t, result.Session)
	assert.Equal(t, "at", result.Session.AccessToken)
	require.NotNil(t, result.Outlet)
	assert.Nil(t, result.Chain)
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	gw := NewGateway(
		&fakeIdentity{signIn: func(string, string) (*domain.Session, *identity.User, error) {
			return nil, nil, identity.ErrInvalidCredentials
		}},
		&fakeTenantStore{},
		testLogger(),
	)

	_, err := gw.Authenticate(context.Background(), "owner@example.com", "wrong")
	assert.ErrorIs(t, err, apierrors.ErrInvalidCredentials)
}

func TestAuthenticateCheckOrder(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name    string
		user    *identity.User
		store   *fakeTenantStore
		wantErr *apierrors.APIError
	}{
		{
			name:    "no tenant linkage",
			user:    &identity.User{ID: "user-1", UserMetadata: map[string]interface{}{domain.UserTypeKey: domain.RoleOutletOwner}},
			store:   &fakeTenantStore{},
			wantErr: apierrors.ErrUnlinkedIdentity,
		},
		{
			name:    "no role at all",
			user:    &identity.User{ID: "user-1"},
			store:   &fakeTenantStore{},
			wantErr: apierrors.ErrUnlinkedIdentity,
		},
		{
			name:    "tenant missing",
			user:    outletOwner("out-gone"),
			store:   &fakeTenantStore{},
			wantErr: apierrors.ErrTenantNotFound,
		},
		{
			name: "tenant inactive",
			user: outletOwner("out-1"),
			store: &fakeTenantStore{outletByID: func(id string) (*domain.Outlet, error) {
				return &domain.Outlet{ID: id, IsActive: false}, nil
			}},
			wantErr: apierrors.ErrTenantInactive,
		},
		{
			name: "plan expired",
			user: outletOwner("out-1"),
			store: &fakeTenantStore{outletByID: func(id string) (*domain.Outlet, error) {
				return &domain.Outlet{ID: id, IsActive: true, PlanEndDate: &past}, nil
			}},
			wantErr: apierrors.ErrPlanExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewGateway(&fakeIdentity{signIn: signInOK(tt.user)}, tt.store, testLogger())
			_, err := gw.Authenticate(context.Background(), "x@example.com", "secret123")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthenticateSectionManager(t *testing.T) {
	manager := &identity.User{
		ID: "mgr-1",
		UserMetadata: map[string]interface{}{
			domain.UserTypeKey: domain.RoleSectionManager,
			domain.OutletIDKey: "out-1",
		},
	}

	t.Run("active sub-account", func(t *testing.T) {
		gw := NewGateway(
			&fakeIdentity{signIn: signInOK(manager)},
			&fakeTenantStore{
				outletByID: func(id string) (*domain.Outlet, error) { return activeOutlet(id), nil },
				sectionByUID: func(authUserID string) (*domain.SectionManager, error) {
					return &domain.SectionManager{ID: "sm-1", SectionID: "grill", AuthUserID: authUserID, IsActive: true}, nil
				},
			},
			testLogger(),
		)

		result, err := gw.Authenticate(context.Background(), "mgr@example.com", "secret123")
		require.NoError(t, err)
		require.NotNil(t, result.Section)
		assert.Equal(t, "grill", result.Section.SectionID)
	})

	t.Run("deactivated sub-account", func(t *testing.T) {
		gw := NewGateway(
			&fakeIdentity{signIn: signInOK(manager)},
			&fakeTenantStore{
				outletByID: func(id string) (*domain.Outlet, error) { return activeOutlet(id), nil },
				sectionByUID: func(authUserID string) (*domain.SectionManager, error) {
					return &domain.SectionManager{ID: "sm-1", IsActive: false}, nil
				},
			},
			testLogger(),
		)

		_, err := gw.Authenticate(context.Background(), "mgr@example.com", "secret123")
		assert.ErrorIs(t, err, apierrors.ErrSubAccountDeactivated)
	})

	t.Run("no sub-account record", func(t *testing.T) {
		gw := NewGateway(
			&fakeIdentity{signIn: signInOK(manager)},
			&fakeTenantStore{
				outletByID: func(id string) (*domain.Outlet, error) { return activeOutlet(id), nil },
			},
			testLogger(),
		)

		_, err := gw.Authenticate(context.Background(), "mgr@example.com", "secret123")
		assert.ErrorIs(t, err, apierrors.ErrSubAccountDeactivated)
	})
}

func TestAuthenticateChainOwner(t *testing.T) {
	owner := &identity.User{
		ID: "user-9",
		UserMetadata: map[string]interface{}{
			domain.UserTypeKey: domain.RoleChainOwner,
			domain.ChainIDKey:  "chain-1",
		},
	}
	gw := NewGateway(
		&fakeIdentity{signIn: signInOK(owner)},
		&fakeTenantStore{chainByID: func(id string) (*domain.Chain, error) {
			return &domain.Chain{ID: id, ChainName: "Harbor Group", IsActive: true}, nil
		}},
		testLogger(),
	)

	result, err := gw.Authenticate(context.Background(), "hq@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleChainOwner, result.Role)
	require.NotNil(t, result.Chain)
	assert.Nil(t, result.Outlet)
}
