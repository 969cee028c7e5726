package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellanby-hall/portal/internal/api/handler"
	"github.com/mellanby-hall/portal/internal/gateway"
)

// newEventsBackend fakes the backend's events collection.
func newEventsBackend(t *testing.T) (*httptest.Server, *gateway.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("id") == "eq.ev1" {
				_, _ = w.Write([]byte(`[{"id":"ev1","title":"Hall Week Dinner","description":"Annual dinner",
					"date":"2026-09-12","start_time":"18:00","end_time":"21:00","location":"Great Hall","category":"Social"}]`))
				return
			}
			_, _ = w.Write([]byte(`[
				{"id":"ev1","title":"Hall Week Dinner","date":"2026-09-12","start_time":"18:00","end_time":"21:00","location":"Great Hall","category":"Social"},
				{"id":"ev2","title":"Exec Elections","date":"2026-09-01","start_time":"09:00","end_time":"12:00","location":"JCR","category":"Administrative"}
			]`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	c := gateway.NewClient(srv.URL, "anon-key")
	t.Cleanup(c.Close)
	return srv, c
}

func eventsRouter(gw *gateway.Client) *chi.Mux {
	h := handler.NewEventsHandler(gw)
	r := chi.NewRouter()
	r.Get("/api/events", h.List)
	r.Get("/api/events/{id}/calendar.ics", h.Calendar)
	r.Get("/api/events/{id}/google-calendar", h.GoogleCalendar)
	r.Post("/admin/api/events", h.Create)
	r.Delete("/admin/api/events/{id}", h.Delete)
	return r
}

func TestEventsList_MapsColumnsToAPIShape(t *testing.T) {
	_, gw := newEventsBackend(t)
	router := eventsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, "Hall Week Dinner", env.Data[0]["title"])
	assert.Equal(t, "18:00", env.Data[0]["startTime"], "snake_case columns map to camelCase JSON")
	assert.Equal(t, "21:00", env.Data[0]["endTime"])
}

func TestEventsCalendarExport(t *testing.T) {
	_, gw := newEventsBackend(t)
	router := eventsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/ev1/calendar.ics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Hall_Week_Dinner.ics")

	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "DTSTART:20260912T180000")
	assert.Contains(t, body, "SUMMARY:Hall Week Dinner")
}

func TestEventsGoogleCalendarRedirect(t *testing.T) {
	_, gw := newEventsBackend(t)
	router := eventsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/ev1/google-calendar", nil))

	require.Equal(t, http.StatusSeeOther, w.Code)
	loc := w.Header().Get("Location")
	assert.Contains(t, loc, "calendar.google.com")
	assert.Contains(t, loc, "20260912T180000%2F20260912T210000")
}

func TestEventsCreate_Validation(t *testing.T) {
	_, gw := newEventsBackend(t)
	router := eventsRouter(gw)

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "valid event",
			body: `{"title":"Games Night","date":"2026-10-01","startTime":"19:00","endTime":"22:00","location":"JCR","category":"Social"}`,
			want: http.StatusCreated,
		},
		{
			name: "missing title",
			body: `{"date":"2026-10-01","category":"Social"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown category",
			body: `{"title":"Games Night","date":"2026-10-01","category":"Mystery"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "invalid json",
			body: `{`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/api/events", strings.NewReader(tt.body))
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestEventsDelete(t *testing.T) {
	_, gw := newEventsBackend(t)
	router := eventsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/api/events/ev1", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEventsList_BackendDownYieldsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	gw := gateway.NewClient(srv.URL, "anon-key")
	defer gw.Close()
	router := eventsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
