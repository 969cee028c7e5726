package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mellanby-hall/portal/internal/api/middleware"
	"github.com/mellanby-hall/portal/internal/api/response"
	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/portal"
)

// MaintenanceHandler serves the public maintenance-request form and the
// admin triage endpoints.
type MaintenanceHandler struct {
	gw *gateway.Client
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(gw *gateway.Client) *MaintenanceHandler {
	return &MaintenanceHandler{gw: gw}
}

// Create handles POST /api/maintenance — residents file requests without
// signing in.
func (h *MaintenanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req portal.MaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Block == "" || req.Description == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Block and description are required", requestID)
		return
	}

	req.ID = ""
	req.CreatedAt = ""
	req.Status = "Pending"

	if err := h.gw.From("maintenance_requests").Insert(r.Context(), []portal.MaintenanceRequest{req}); err != nil {
		writeBackendError(w, err, "create maintenance request", requestID)
		return
	}
	response.Success(w, http.StatusCreated, req, requestID)
}

// List handles GET /admin/api/maintenance, newest first.
func (h *MaintenanceHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var requests []portal.MaintenanceRequest
	if err := h.gw.From("maintenance_requests").Order("created_at", false).Get(r.Context(), &requests); err != nil {
		writeBackendError(w, err, "list maintenance requests", requestID)
		return
	}
	response.Success(w, http.StatusOK, requests, requestID)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /admin/api/maintenance/{id}/status.
func (h *MaintenanceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	valid := false
	for _, s := range portal.MaintenanceStatuses {
		if req.Status == s {
			valid = true
			break
		}
	}
	if !valid {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status value", requestID)
		return
	}

	err := h.gw.From("maintenance_requests").Eq("id", id).Update(r.Context(), map[string]string{"status": req.Status})
	if err != nil {
		writeBackendError(w, err, "update maintenance status", requestID)
		return
	}
	response.Success(w, http.StatusOK, map[string]string{"id": id, "status": req.Status}, requestID)
}
