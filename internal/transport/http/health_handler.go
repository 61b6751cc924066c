package http

import (
	"net/http"
	"time"
)

// Build metadata, set via -ldflags at release time.
var (
	Version   = "dev"
	BuildTime = ""
)

// HealthHandler serves liveness and version probes.
type HealthHandler struct {
	startedAt time.Time
}

// NewHealthHandler creates the health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now()}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, "", map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	})
}

// Version handles GET /version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, "", map[string]string{
		"version":    Version,
		"build_time": BuildTime,
	})
}
