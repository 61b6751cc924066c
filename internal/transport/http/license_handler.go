package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "kdsops/internal/errors"
	"kdsops/internal/services"
	"kdsops/pkg/contracts/domain"
)

// LicenseHandler serves the public license endpoints: verification,
// register-or-login and plain login for outlets.
type LicenseHandler struct {
	service *services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates the public license handler
func NewLicenseHandler(service *services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes mounts the public license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/verify", h.Verify)
	r.Post("/outlet-auth", h.OutletAuth)
	r.Post("/outlet-login", h.OutletLogin)
	r.Get("/check/{key}", h.Check)

	return r
}

type verifyRequest struct {
	LicenseKey string `json:"license_key" validate:"required,min=8"`
	Email      string `json:"email" validate:"omitempty,email"`
}

type outletAuthRequest struct {
	LicenseKey string `json:"license_key" validate:"required,min=8"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	FullName   string `json:"full_name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Verify handles POST /licenses/verify. Resolution only; nothing is
// consumed and no credentials are involved.
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.verify")
	defer span.End()

	var req verifyRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	result, err := h.service.Verify(ctx, req.LicenseKey, req.Email)
	if err != nil {
		span.RecordError(err)
		respondErr(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("tenant.kind", string(result.TenantKind)),
		attribute.Bool("license.already_used", result.AlreadyUsed),
	)
	respond(w, r, http.StatusOK, "License key verified", result)
}

// OutletAuth handles POST /licenses/outlet-auth, the combined signup/login
// behind an outlet license key.
func (h *LicenseHandler) OutletAuth(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.outlet_auth",
		trace.WithAttributes(attribute.String("http.route", "/licenses/outlet-auth")))
	defer span.End()

	var req outletAuthRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	result, err := h.service.RegisterOrLogin(ctx, req.LicenseKey, req.Email, req.Password, req.FullName, domain.TenantOutlet)
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "outlet auth failed",
			slog.String("error_code", apierrors.AsAPIError(err).ErrorCode))
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Authenticated", newSessionPayload(result))
}

// OutletLogin handles POST /licenses/outlet-login for already activated
// accounts. No license key is required once the tenant is active.
func (h *LicenseHandler) OutletLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.outlet_login")
	defer span.End()

	var req loginRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		respondErr(w, r, err)
		return
	}
	if result.Outlet == nil {
		// A chain owner or admin on the outlet form.
		respondErr(w, r, apierrors.ErrForbidden)
		return
	}

	respond(w, r, http.StatusOK, "Login successful", newSessionPayload(result))
}

// Check handles GET /licenses/check/{key}: a lightweight availability probe
// used by signup forms as the user types.
func (h *LicenseHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := chi.URLParam(r, "key")
	if len(key) < 8 {
		respondErr(w, r, apierrors.ErrInvalidLicense)
		return
	}

	result, err := h.service.Verify(ctx, key, "")
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "", map[string]interface{}{
		"available":   !result.AlreadyUsed,
		"tenant_kind": result.TenantKind,
		"tenant_name": result.TenantName,
	})
}
