// Package services contains the use-case orchestration between transport
// handlers and the license, auth, identity and store packages.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kdsops/internal/auth"
	apierrors "kdsops/internal/errors"
	"kdsops/internal/identity"
	"kdsops/internal/license"
	"kdsops/pkg/contracts/domain"
)

// Provisioner is the slice of the identity provider the license service uses.
type Provisioner interface {
	CreateUser(ctx context.Context, email, password string, metadata map[string]interface{}) (*identity.User, bool, error)
	DeleteUser(ctx context.Context, userID string) error
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
}

// VerifyResult is the pre-signup answer for a code: whether it is still
// claimable and which tenant it would activate.
type VerifyResult struct {
	Valid       bool              `json:"valid"`
	Message     string            `json:"message"`
	TenantID    string            `json:"tenant_id"`
	TenantName  string            `json:"tenant_name"`
	TenantKind  domain.TenantKind `json:"tenant_kind"`
	AlreadyUsed bool              `json:"already_used"`
	Active      bool              `json:"active"`
	PlanEndDate *time.Time        `json:"plan_end_date,omitempty"`
}

// DeviceActivation is the outcome of claiming a code for a device.
type DeviceActivation struct {
	Tenant      domain.TenantRef `json:"tenant"`
	PlanEndDate *time.Time       `json:"plan_end_date,omitempty"`
}

// LicenseService orchestrates the license lifecycle: verification,
// register-or-login, device activation and session refresh.
type LicenseService struct {
	resolver *license.Resolver
	machine  *license.StateMachine
	gateway  *auth.Gateway
	identity Provisioner
	logger   *slog.Logger
}

// NewLicenseService wires the license use cases
func NewLicenseService(resolver *license.Resolver, machine *license.StateMachine, gateway *auth.Gateway, provisioner Provisioner, logger *slog.Logger) *LicenseService {
	return &LicenseService{
		resolver: resolver,
		machine:  machine,
		gateway:  gateway,
		identity: provisioner,
		logger:   logger.With(slog.String("component", "license_service")),
	}
}

// Verify resolves a code without consuming anything. Signup forms call this
// to show the tenant name before asking for credentials. When the caller
// supplies the email it intends to sign up with, the message for a consumed
// code distinguishes "log in instead" from a code someone else holds.
func (s *LicenseService) Verify(ctx context.Context, code, email string) (*VerifyResult, error) {
	res, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Valid:       !res.AlreadyUsed,
		Message:     "License key is valid",
		TenantID:    res.Ref.ID,
		TenantName:  res.Ref.Name,
		TenantKind:  res.Ref.Kind,
		AlreadyUsed: res.AlreadyUsed,
		Active:      res.TenantActive,
		PlanEndDate: res.PlanEndDate,
	}
	if res.AlreadyUsed {
		result.Message = "License key has already been activated by another account"
		if email != "" && strings.EqualFold(email, registeredEmail(res)) {
			result.Message = "License key is already activated. Please login instead."
		}
	}
	return result, nil
}

// RegisterOrLogin is the combined signup/login entry point behind a license
// code. expect restricts which tenant kind the code may activate; a chain
// master key presented on the outlet form is rejected as invalid rather than
// revealing what it is.
//
// A consumed code never provisions an identity: holders of working
// credentials log in, everyone else is refused. An unconsumed code claims
// the tenant for a new identity, or replays a previously interrupted
// activation for a known one.
func (s *LicenseService) RegisterOrLogin(ctx context.Context, code, email, password, fullName string, expect domain.TenantKind) (*auth.Result, error) {
	res, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if expect != "" && res.Ref.Kind != expect {
		return nil, apierrors.ErrInvalidLicense
	}

	if res.AlreadyUsed {
		// Refuse before the provider ever sees the signup: provisioning
		// here would link a fresh identity to a tenant someone else
		// activated, and that linkage alone passes every later login check.
		session, existing, err := s.gateway.SignIn(ctx, email, password)
		if err != nil {
			if errors.Is(err, apierrors.ErrInvalidCredentials) {
				return nil, apierrors.ErrLicenseAlreadyConsumed
			}
			return nil, err
		}
		result, err := s.gateway.Validate(ctx, existing)
		if err != nil {
			return nil, err
		}
		result.Session = session
		return result, nil
	}

	user, created, err := s.identity.CreateUser(ctx, email, password, signupMetadata(res, fullName))
	if err != nil {
		s.logger.ErrorContext(ctx, "identity provisioning failed",
			slog.String("email", email),
			slog.String("error", err.Error()))
		return nil, apierrors.ErrProvisioning
	}

	if created {
		if err := s.machine.Activate(ctx, res, user.ID, user.ID); err != nil {
			if errors.Is(err, apierrors.ErrLicenseAlreadyConsumed) {
				s.discardIdentity(ctx, user)
			}
			return nil, err
		}
		return s.gateway.Authenticate(ctx, email, password)
	}

	// Existing identity with an unconsumed code: a previously interrupted
	// activation. Authenticate first so a wrong password never consumes
	// anything.
	session, existing, err := s.gateway.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if linkedTenantID(existing) != res.Ref.ID {
		return nil, apierrors.ErrValidation("email", "already registered to a different account")
	}
	if err := s.machine.Activate(ctx, res, existing.ID, existing.ID); err != nil {
		return nil, err
	}

	result, err := s.gateway.Validate(ctx, existing)
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// discardIdentity removes an identity provisioned for a claim that then lost
// the activation race. Left in place, its linkage metadata would log into a
// tenant it never activated.
func (s *LicenseService) discardIdentity(ctx context.Context, user *identity.User) {
	if err := s.identity.DeleteUser(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "orphaned identity not removed",
			slog.String("identity_id", user.ID),
			slog.String("error", err.Error()))
	}
}

// Login is plain credential login with full tenant validation.
func (s *LicenseService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	return s.gateway.Authenticate(ctx, email, password)
}

// ActivateDevice claims a code on behalf of an unattended device, such as a
// point-of-sale terminal. The device label is the recorded consumer, so the
// same device may retry the call freely.
func (s *LicenseService) ActivateDevice(ctx context.Context, code, deviceID string) (*DeviceActivation, error) {
	res, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.machine.Activate(ctx, res, "device:"+deviceID, ""); err != nil {
		return nil, err
	}

	return &DeviceActivation{
		Tenant:      res.Ref,
		PlanEndDate: res.PlanEndDate,
	}, nil
}

// Refresh exchanges a refresh token for a new session.
func (s *LicenseService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	session, err := s.identity.RefreshSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrTokenRejected) {
			return nil, apierrors.ErrInvalidSession
		}
		s.logger.ErrorContext(ctx, "session refresh failed", slog.String("error", err.Error()))
		return nil, apierrors.ErrInternalServer
	}
	return session, nil
}

// signupMetadata builds the identity metadata that permanently links a new
// account to the resolved tenant.
func signupMetadata(res *license.Resolution, fullName string) map[string]interface{} {
	metadata := map[string]interface{}{
		domain.FullNameKey: fullName,
	}
	switch res.Ref.Kind {
	case domain.TenantChain:
		metadata[domain.UserTypeKey] = domain.RoleChainOwner
		metadata[domain.ChainIDKey] = res.Ref.ID
	default:
		metadata[domain.UserTypeKey] = domain.RoleOutletOwner
		metadata[domain.OutletIDKey] = res.Ref.ID
	}
	return metadata
}

// registeredEmail is the owner contact recorded on the resolved tenant row.
func registeredEmail(res *license.Resolution) string {
	switch {
	case res.Outlet != nil:
		return res.Outlet.OwnerEmail
	case res.Chain != nil:
		return res.Chain.MasterAdminEmail
	}
	return ""
}

// linkedTenantID returns the tenant id an identity's metadata points at,
// whatever its role.
func linkedTenantID(user *identity.User) string {
	if id := user.MetaString(domain.OutletIDKey); id != "" {
		return id
	}
	return user.MetaString(domain.ChainIDKey)
}
