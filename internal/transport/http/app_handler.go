package http

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"kdsops/internal/auth"
	apierrors "kdsops/internal/errors"
	"kdsops/internal/services"
)

// AppHandler serves the device-facing endpoints used by point-of-sale
// installations: activation, session refresh and the status probe.
type AppHandler struct {
	service *services.LicenseService
	logger  *slog.Logger
}

// NewAppHandler creates the device endpoint handler
func NewAppHandler(service *services.LicenseService, logger *slog.Logger) *AppHandler {
	return &AppHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "app")),
	}
}

type activateDeviceRequest struct {
	LicenseKey string `json:"license_key" validate:"required,min=8"`
	DeviceID   string `json:"device_id" validate:"omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Activate handles POST /app/auth/activate: an unattended device claims a
// code without creating an identity. Retries from the same device succeed.
func (h *AppHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("app-handler").Start(r.Context(), "app_handler.activate")
	defer span.End()

	var req activateDeviceRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		// No stable identifier offered. A one-off label keeps the claim
		// attributable without letting anonymous devices share a retry
		// identity.
		deviceID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("device.id", deviceID))

	result, err := h.service.ActivateDevice(ctx, req.LicenseKey, deviceID)
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "device activation failed",
			slog.String("device_id", deviceID),
			slog.String("error_code", apierrors.AsAPIError(err).ErrorCode))
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Device activated", result)
}

// Refresh handles POST /app/refresh-token.
func (h *AppHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	session, err := h.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Session refreshed", session)
}

// Status handles GET /app/status. The outlet guard has already validated
// the tenant, so this just reports what it found.
func (h *AppHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil || principal.Outlet == nil {
		respondErr(w, r, apierrors.ErrUnauthenticated)
		return
	}

	respond(w, r, http.StatusOK, "", map[string]interface{}{
		"outlet_id":     principal.Outlet.ID,
		"outlet_name":   principal.Outlet.OutletName,
		"is_active":     principal.Outlet.IsActive,
		"plan_end_date": principal.Outlet.PlanEndDate,
		"role":          principal.Role,
		"section_id":    principal.SectionID,
	})
}
