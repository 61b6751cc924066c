package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "kdsops/internal/errors"
	"kdsops/internal/services"
	"kdsops/pkg/contracts/domain"
)

// AdminHandler serves administrative provisioning: minting license keys and
// managing tenant records. Mounted behind the admin guard.
type AdminHandler struct {
	service *services.AdminService
	logger  *slog.Logger
}

// NewAdminHandler creates the admin handler
func NewAdminHandler(service *services.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "admin")),
	}
}

// Routes mounts the admin endpoints. Login is the only route outside the
// guard; everything else requires an authenticated admin.
func (h *AdminHandler) Routes(guard func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Route("/license-keys", func(r chi.Router) {
			r.Post("/", h.MintKey)
			r.Get("/", h.ListKeys)
			r.Get("/{id}", h.GetKey)
		})

		r.Route("/outlets", func(r chi.Router) {
			r.Post("/", h.CreateOutlet)
			r.Get("/", h.ListOutlets)
			r.Get("/{id}", h.GetOutlet)
			r.Patch("/{id}/standing", h.SetOutletStanding)
			r.Patch("/{id}/plan", h.SetOutletPlan)
		})

		r.Route("/chains", func(r chi.Router) {
			r.Post("/", h.CreateChain)
			r.Get("/", h.ListChains)
			r.Patch("/{id}/standing", h.SetChainStanding)
		})
	})

	return r
}

// Login handles POST /admin/login: provider credential exchange plus the
// admin registry check.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Login successful", newSessionPayload(result))
}

type mintKeyRequest struct {
	KeyType   string  `json:"key_type" validate:"required,oneof=license master branch"`
	OutletID  *string `json:"outlet_id,omitempty"`
	ChainID   *string `json:"chain_id,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

type createOutletRequest struct {
	OutletName string  `json:"outlet_name" validate:"required"`
	OutletType string  `json:"outlet_type" validate:"required"`
	OwnerName  string  `json:"owner_name" validate:"required"`
	OwnerEmail string  `json:"owner_email" validate:"required,email"`
	OwnerPhone string  `json:"owner_phone,omitempty"`
	Address    string  `json:"address,omitempty"`
	City       string  `json:"city,omitempty"`
	ChainID    *string `json:"chain_id,omitempty"`
}

type createChainRequest struct {
	ChainName        string `json:"chain_name" validate:"required"`
	MasterAdminName  string `json:"master_admin_name" validate:"required"`
	MasterAdminEmail string `json:"master_admin_email" validate:"required,email"`
}

type standingRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type planRequest struct {
	PlanStartDate *string `json:"plan_start_date,omitempty"`
	PlanEndDate   *string `json:"plan_end_date,omitempty"`
}

// MintKey handles POST /admin/license-keys.
func (h *AdminHandler) MintKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req mintKeyRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	in := services.MintKeyInput{
		Kind:     domain.KeyKind(req.KeyType),
		OutletID: req.OutletID,
		ChainID:  req.ChainID,
	}
	if req.ExpiresAt != nil {
		expires, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			respondErr(w, r, apierrors.ErrValidation("expires_at", "must be an RFC 3339 timestamp"))
			return
		}
		in.ExpiresAt = &expires
	}

	key, err := h.service.MintKey(ctx, in)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "License key created", key)
}

// ListKeys handles GET /admin/license-keys.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.ListKeys(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", keys)
}

// GetKey handles GET /admin/license-keys/{id}.
func (h *AdminHandler) GetKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.service.GetKey(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", key)
}

// CreateOutlet handles POST /admin/outlets. The embedded license code is
// generated server-side and returned once in the response.
func (h *AdminHandler) CreateOutlet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOutletRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	outlet, err := h.service.CreateOutlet(ctx, domain.Outlet{
		OutletName: req.OutletName,
		OutletType: req.OutletType,
		OwnerName:  req.OwnerName,
		OwnerEmail: req.OwnerEmail,
		OwnerPhone: req.OwnerPhone,
		Address:    req.Address,
		City:       req.City,
		ChainID:    req.ChainID,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Outlet created", outlet)
}

// ListOutlets handles GET /admin/outlets.
func (h *AdminHandler) ListOutlets(w http.ResponseWriter, r *http.Request) {
	outlets, err := h.service.ListOutlets(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", outlets)
}

// GetOutlet handles GET /admin/outlets/{id}.
func (h *AdminHandler) GetOutlet(w http.ResponseWriter, r *http.Request) {
	outlet, err := h.service.GetOutlet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", outlet)
}

// SetOutletStanding handles PATCH /admin/outlets/{id}/standing.
func (h *AdminHandler) SetOutletStanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req standingRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	if err := h.service.SetOutletActive(ctx, chi.URLParam(r, "id"), *req.IsActive); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Outlet updated", nil)
}

// SetOutletPlan handles PATCH /admin/outlets/{id}/plan.
func (h *AdminHandler) SetOutletPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req planRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	start, apiErr := parseDate(req.PlanStartDate, "plan_start_date")
	if apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}
	end, apiErr := parseDate(req.PlanEndDate, "plan_end_date")
	if apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	if err := h.service.SetOutletPlan(ctx, chi.URLParam(r, "id"), start, end); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Plan updated", nil)
}

// CreateChain handles POST /admin/chains. The master key is generated
// server-side.
func (h *AdminHandler) CreateChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createChainRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	chain, err := h.service.CreateChain(ctx, domain.Chain{
		ChainName:        req.ChainName,
		MasterAdminName:  req.MasterAdminName,
		MasterAdminEmail: req.MasterAdminEmail,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Chain created", chain)
}

// ListChains handles GET /admin/chains.
func (h *AdminHandler) ListChains(w http.ResponseWriter, r *http.Request) {
	chains, err := h.service.ListChains(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", chains)
}

// SetChainStanding handles PATCH /admin/chains/{id}/standing.
func (h *AdminHandler) SetChainStanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req standingRequest
	if apiErr := bind(r, &req); apiErr != nil {
		respondErr(w, r, apiErr)
		return
	}

	if err := h.service.SetChainActive(ctx, chi.URLParam(r, "id"), *req.IsActive); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Chain updated", nil)
}

// parseDate parses an optional YYYY-MM-DD value.
func parseDate(value *string, field string) (*time.Time, *apierrors.APIError) {
	if value == nil {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *value)
	if err != nil {
		return nil, apierrors.ErrValidation(field, "must be formatted YYYY-MM-DD")
	}
	return &t, nil
}
