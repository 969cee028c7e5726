// Package handler contains the portal's HTTP endpoints. Handlers are thin:
// they validate input, delegate to the backend gateway or the session store,
// and write the standard response envelope.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mellanby-hall/portal/internal/api/response"
	"github.com/mellanby-hall/portal/internal/gateway"
)

// writeBackendError surfaces a backend failure to the caller. Errors the
// backend itself reported keep their message (form-visible per the error
// policy); transport failures collapse to a generic 502.
func writeBackendError(w http.ResponseWriter, err error, action, requestID string) {
	var berr *gateway.BackendError
	if errors.As(err, &berr) {
		status := berr.Status
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		slog.Error("backend rejected request", "action", action, "status", berr.Status, "error", err, "requestId", requestID)
		response.Err(w, status, "BACKEND_ERROR", berr.Message, requestID)
		return
	}

	slog.Error("backend unreachable", "action", action, "error", err, "requestId", requestID)
	response.Err(w, http.StatusBadGateway, "BACKEND_UNREACHABLE", "The backend service could not be reached", requestID)
}
