package http

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"kdsops/internal/auth"
	apierrors "kdsops/internal/errors"
	"kdsops/internal/services"
	"kdsops/pkg/contracts/domain"
)

// ChainHandler serves chain signup/login and the chain-owner views.
type ChainHandler struct {
	licenses *services.LicenseService
	chains   *services.ChainService
	logger   *slog.Logger
}

// NewChainHandler creates the chain handler
func NewChainHandler(licenses *services.LicenseService, chains *services.ChainService, logger *slog.Logger) *ChainHandler {
	return &ChainHandler{
		licenses: licenses,
		chains:   chains,
		logger:   logger.With(slog.String("handler", "chain")),
	}
}

type chainSignupRequest struct {
	MasterLicenseKey string `json:"master_license_key" validate:"required,min=8"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	FullName         string `json:"full_name" validate:"required"`
}

// Signup handles POST /chains/signup: register-or-login behind a master key.
func (h *ChainHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("chain-handler").Start(r.Context(), "chain_handler.signup")
	defer span.End()

	var req chainSignupRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	result, err := h.licenses.RegisterOrLogin(ctx, req.MasterLicenseKey, req.Email, req.Password, req.FullName, domain.TenantChain)
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "chain signup failed",
			slog.String("error_code", apierrors.AsAPIError(err).ErrorCode))
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Authenticated", newSessionPayload(result))
}

// Login handles POST /chains/login.
func (h *ChainHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	result, err := h.licenses.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if result.Chain == nil {
		respondErr(w, r, apierrors.ErrForbidden)
		return
	}

	respond(w, r, http.StatusOK, "Login successful", newSessionPayload(result))
}

// Outlets handles GET /chains/outlets for the authenticated chain owner.
func (h *ChainHandler) Outlets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal := auth.PrincipalFromContext(ctx)
	if principal == nil || principal.ChainID == "" {
		respondErr(w, r, apierrors.ErrUnauthenticated)
		return
	}

	outlets, err := h.chains.Outlets(ctx, principal.ChainID)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "", outlets)
}

// Dashboard handles GET /chains/dashboard?date=YYYY-MM-DD. Defaults to
// today when no date is given.
func (h *ChainHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("chain-handler").Start(r.Context(), "chain_handler.dashboard")
	defer span.End()

	principal := auth.PrincipalFromContext(ctx)
	if principal == nil || principal.ChainID == "" {
		respondErr(w, r, apierrors.ErrUnauthenticated)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		respondErr(w, r, apierrors.ErrValidation("date", "must be formatted YYYY-MM-DD"))
		return
	}
	span.SetAttributes(
		attribute.String("chain.id", principal.ChainID),
		attribute.String("dashboard.date", date),
	)

	summary, err := h.chains.Dashboard(ctx, principal.ChainID, date)
	if err != nil {
		span.RecordError(err)
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "", summary)
}
