package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mellanby-hall/portal/internal/api/middleware"
	"github.com/mellanby-hall/portal/internal/api/response"
	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/portal"
)

const maxDocumentSize = 25 << 20

// DocumentsHandler serves the public document archive and the admin
// upload/delete endpoints. Uploads write the object to the storage bucket
// first and the collection row second; a failed row insert leaves no
// phantom list entry.
type DocumentsHandler struct {
	gw     *gateway.Client
	bucket string
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(gw *gateway.Client, bucket string) *DocumentsHandler {
	return &DocumentsHandler{gw: gw, bucket: bucket}
}

// List handles GET /api/documents — the public archive, restricted rows
// excluded.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var docs []portal.Document
	err := h.gw.From("documents").Eq("restricted", "false").Order("created_at", false).Get(r.Context(), &docs)
	if err != nil {
		writeBackendError(w, err, "list documents", requestID)
		return
	}
	response.Success(w, http.StatusOK, docs, requestID)
}

// ListAll handles GET /admin/api/documents, restricted rows included.
func (h *DocumentsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var docs []portal.Document
	if err := h.gw.From("documents").Order("created_at", false).Get(r.Context(), &docs); err != nil {
		writeBackendError(w, err, "list documents", requestID)
		return
	}
	response.Success(w, http.StatusOK, docs, requestID)
}

// Upload handles POST /admin/api/documents (multipart form: file, category,
// restricted).
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_FORM", "Request must be a multipart form with a file", requestID)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "A file is required", requestID)
		return
	}
	defer file.Close()

	category := strings.TrimSpace(r.FormValue("category"))
	if category == "" {
		category = "Meeting Minutes"
	}
	restricted := r.FormValue("restricted") == "true"

	ext := strings.TrimPrefix(path.Ext(header.Filename), ".")
	objectPath := fmt.Sprintf("%s_%d.%s", randomToken(), time.Now().UnixMilli(), ext)

	if _, err := h.gw.UploadFile(r.Context(), h.bucket, objectPath, file, header.Header.Get("Content-Type")); err != nil {
		writeBackendError(w, err, "upload document", requestID)
		return
	}

	docType := strings.ToUpper(ext)
	if docType == "" {
		docType = "FILE"
	}

	doc := portal.Document{
		Name:       header.Filename,
		Size:       formatFileSize(header.Size),
		Date:       time.Now().UTC().Format("2006-01-02"),
		Type:       docType,
		URL:        h.gw.PublicURL(h.bucket, objectPath),
		Category:   category,
		Restricted: restricted,
	}

	if err := h.gw.From("documents").Insert(r.Context(), []portal.Document{doc}); err != nil {
		// The orphaned object is cleaned up so a retry does not leave
		// unreferenced files in the bucket.
		if rmErr := h.gw.RemoveFiles(r.Context(), h.bucket, []string{objectPath}); rmErr != nil {
			slog.Error("failed to remove orphaned upload", "path", objectPath, "error", rmErr)
		}
		writeBackendError(w, err, "record document", requestID)
		return
	}

	response.Success(w, http.StatusCreated, doc, requestID)
}

// ToggleRestricted handles PATCH /admin/api/documents/{id}/restricted.
func (h *DocumentsHandler) ToggleRestricted(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	var doc portal.Document
	if err := h.gw.From("documents").Eq("id", id).Single(r.Context(), &doc); err != nil {
		writeBackendError(w, err, "get document", requestID)
		return
	}

	err := h.gw.From("documents").Eq("id", id).Update(r.Context(), map[string]bool{"restricted": !doc.Restricted})
	if err != nil {
		writeBackendError(w, err, "update document", requestID)
		return
	}
	doc.Restricted = !doc.Restricted
	response.Success(w, http.StatusOK, doc, requestID)
}

// Delete handles DELETE /admin/api/documents/{id}: the storage object goes
// first (best effort), then the row.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	var doc portal.Document
	if err := h.gw.From("documents").Eq("id", id).Single(r.Context(), &doc); err != nil {
		writeBackendError(w, err, "get document", requestID)
		return
	}

	if objectPath := h.objectPath(doc.URL); objectPath != "" {
		if err := h.gw.RemoveFiles(r.Context(), h.bucket, []string{objectPath}); err != nil {
			slog.Error("failed to delete document object", "path", objectPath, "error", err)
		}
	}

	if err := h.gw.From("documents").Eq("id", id).Delete(r.Context()); err != nil {
		writeBackendError(w, err, "delete document", requestID)
		return
	}
	response.NoContent(w)
}

// objectPath recovers the storage path from a public URL of the form
// .../storage/v1/object/public/<bucket>/<path>.
func (h *DocumentsHandler) objectPath(url string) string {
	marker := "/" + h.bucket + "/"
	idx := strings.LastIndex(url, marker)
	if idx < 0 {
		return ""
	}
	return url[idx+len(marker):]
}

func randomToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// formatFileSize renders a byte count the way the archive displays it.
func formatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	size = math.Round(size*100) / 100
	return strconv.FormatFloat(size, 'f', -1, 64) + " " + units[i]
}
