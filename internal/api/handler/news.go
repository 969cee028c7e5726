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

var newsCategories = map[string]bool{
	"Announcement":  true,
	"Press Release": true,
	"Hall News":     true,
}

// NewsHandler serves the public news feed and the admin CRUD endpoints for
// the news collection.
type NewsHandler struct {
	gw *gateway.Client
}

// NewNewsHandler creates a new NewsHandler.
func NewNewsHandler(gw *gateway.Client) *NewsHandler {
	return &NewsHandler{gw: gw}
}

// List handles GET /api/news, newest first.
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var articles []portal.NewsArticle
	if err := h.gw.From("news").Order("date", false).Get(r.Context(), &articles); err != nil {
		writeBackendError(w, err, "list news", requestID)
		return
	}
	response.Success(w, http.StatusOK, articles, requestID)
}

func decodeArticle(w http.ResponseWriter, r *http.Request, requestID string) (portal.NewsArticle, bool) {
	var zero portal.NewsArticle

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var article portal.NewsArticle
	if err := json.NewDecoder(r.Body).Decode(&article); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return zero, false
	}

	article.Title = strings.TrimSpace(article.Title)
	if article.Title == "" || article.Date == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title and date are required", requestID)
		return zero, false
	}
	if !newsCategories[article.Category] {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown news category", requestID)
		return zero, false
	}
	article.ID = ""
	return article, true
}

// Create handles POST /admin/api/news.
func (h *NewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	article, ok := decodeArticle(w, r, requestID)
	if !ok {
		return
	}

	if err := h.gw.From("news").Insert(r.Context(), []portal.NewsArticle{article}); err != nil {
		writeBackendError(w, err, "create news article", requestID)
		return
	}
	response.Success(w, http.StatusCreated, article, requestID)
}

// Update handles PUT /admin/api/news/{id}.
func (h *NewsHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	article, ok := decodeArticle(w, r, requestID)
	if !ok {
		return
	}

	if err := h.gw.From("news").Eq("id", id).Update(r.Context(), article); err != nil {
		writeBackendError(w, err, "update news article", requestID)
		return
	}
	article.ID = id
	response.Success(w, http.StatusOK, article, requestID)
}

// Delete handles DELETE /admin/api/news/{id}.
func (h *NewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.gw.From("news").Eq("id", id).Delete(r.Context()); err != nil {
		writeBackendError(w, err, "delete news article", requestID)
		return
	}
	response.NoContent(w)
}
