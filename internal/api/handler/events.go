package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mellanby-hall/portal/internal/api/middleware"
	"github.com/mellanby-hall/portal/internal/api/response"
	"github.com/mellanby-hall/portal/internal/calendar"
	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/portal"
)

var eventCategories = map[string]bool{
	"Social":         true,
	"Academic":       true,
	"Administrative": true,
	"Sports":         true,
}

// EventsHandler serves the public events feed, calendar exports, and the
// admin CRUD endpoints for the events collection.
type EventsHandler struct {
	gw *gateway.Client
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(gw *gateway.Client) *EventsHandler {
	return &EventsHandler{gw: gw}
}

// List handles GET /api/events, newest first.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var rows []portal.EventRow
	if err := h.gw.From("events").Order("date", false).Get(r.Context(), &rows); err != nil {
		writeBackendError(w, err, "list events", requestID)
		return
	}

	events := make([]portal.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.Event())
	}
	response.Success(w, http.StatusOK, events, requestID)
}

// getEvent fetches a single event by path ID, writing the error response
// itself when the lookup fails.
func (h *EventsHandler) getEvent(w http.ResponseWriter, r *http.Request) (portal.Event, bool) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	var row portal.EventRow
	if err := h.gw.From("events").Eq("id", id).Single(r.Context(), &row); err != nil {
		var zero portal.Event
		writeBackendError(w, err, "get event", requestID)
		return zero, false
	}
	return row.Event(), true
}

// Calendar handles GET /api/events/{id}/calendar.ics.
func (h *EventsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	event, ok := h.getEvent(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+calendar.Filename(event)+`"`)
	_, _ = w.Write([]byte(calendar.ICS(event)))
}

// GoogleCalendar handles GET /api/events/{id}/google-calendar, bouncing the
// caller to a prefilled Google Calendar form.
func (h *EventsHandler) GoogleCalendar(w http.ResponseWriter, r *http.Request) {
	event, ok := h.getEvent(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, calendar.GoogleURL(event), http.StatusSeeOther)
}

// decodeEvent reads and validates an event payload from the request body.
func decodeEvent(w http.ResponseWriter, r *http.Request, requestID string) (portal.Event, bool) {
	var zero portal.Event

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var event portal.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return zero, false
	}

	event.Title = strings.TrimSpace(event.Title)
	if event.Title == "" || event.Date == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title and date are required", requestID)
		return zero, false
	}
	if !eventCategories[event.Category] {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown event category", requestID)
		return zero, false
	}
	return event, true
}

// Create handles POST /admin/api/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	event, ok := decodeEvent(w, r, requestID)
	if !ok {
		return
	}

	if err := h.gw.From("events").Insert(r.Context(), []portal.EventRow{event.Row()}); err != nil {
		writeBackendError(w, err, "create event", requestID)
		return
	}
	response.Success(w, http.StatusCreated, event, requestID)
}

// Update handles PUT /admin/api/events/{id}.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	event, ok := decodeEvent(w, r, requestID)
	if !ok {
		return
	}

	if err := h.gw.From("events").Eq("id", id).Update(r.Context(), event.Row()); err != nil {
		writeBackendError(w, err, "update event", requestID)
		return
	}
	event.ID = id
	response.Success(w, http.StatusOK, event, requestID)
}

// Delete handles DELETE /admin/api/events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.gw.From("events").Eq("id", id).Delete(r.Context()); err != nil {
		writeBackendError(w, err, "delete event", requestID)
		return
	}
	response.NoContent(w)
}
