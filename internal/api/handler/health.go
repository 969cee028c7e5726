package handler

import (
	"net/http"

	"github.com/mellanby-hall/portal/internal/api/middleware"
	"github.com/mellanby-hall/portal/internal/api/response"
)

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	backendConfigured bool
	version           string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(backendConfigured bool, version string) *HealthHandler {
	return &HealthHandler{backendConfigured: backendConfigured, version: version}
}

type backendStatus struct {
	Configured bool `json:"configured"`
}

type healthData struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Backend backendStatus `json:"backend"`
}

// ServeHTTP handles the health check request. The portal serves public
// content even without a backend, so a missing backend reports degraded
// rather than unhealthy.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"
	if !h.backendConfigured {
		status = "degraded"
	}

	response.Success(w, http.StatusOK, healthData{
		Status:  status,
		Version: h.version,
		Backend: backendStatus{Configured: h.backendConfigured},
	}, requestID)
}
