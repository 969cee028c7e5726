package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mellanby-hall/portal/internal/api/handler"
	"github.com/mellanby-hall/portal/internal/api/middleware"
	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/guard"
	"github.com/mellanby-hall/portal/internal/session"
)

// Admin entry points the route guard redirects to.
const (
	LoginPath = "/admin/login"
	HomePath  = "/"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Gateway        *gateway.Client
	Store          *session.Store
	Version        string
	DocumentBucket string
	BackendReady   bool
}

// NewRouter creates and configures a Chi router with all middleware and
// routes. Everything under /admin/api sits behind the route guard.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.BackendReady, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	authHandler := handler.NewAuthHandler(deps.Gateway, deps.Store)
	eventsHandler := handler.NewEventsHandler(deps.Gateway)
	newsHandler := handler.NewNewsHandler(deps.Gateway)
	documentsHandler := handler.NewDocumentsHandler(deps.Gateway, deps.DocumentBucket)
	maintenanceHandler := handler.NewMaintenanceHandler(deps.Gateway)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", eventsHandler.List)
		r.Get("/events/{id}/calendar.ics", eventsHandler.Calendar)
		r.Get("/events/{id}/google-calendar", eventsHandler.GoogleCalendar)
		r.Get("/news", newsHandler.List)
		r.Get("/documents", documentsHandler.List)
		r.Post("/maintenance", maintenanceHandler.Create)
	})

	r.Post(LoginPath, authHandler.Login)
	r.Post("/admin/logout", authHandler.Logout)
	r.Get("/admin/session", authHandler.Session)

	adminGuard := guard.New(deps.Store, LoginPath, HomePath)
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(adminGuard.Protect)

		r.Post("/events", eventsHandler.Create)
		r.Put("/events/{id}", eventsHandler.Update)
		r.Delete("/events/{id}", eventsHandler.Delete)

		r.Post("/news", newsHandler.Create)
		r.Put("/news/{id}", newsHandler.Update)
		r.Delete("/news/{id}", newsHandler.Delete)

		r.Get("/documents", documentsHandler.ListAll)
		r.Post("/documents", documentsHandler.Upload)
		r.Patch("/documents/{id}/restricted", documentsHandler.ToggleRestricted)
		r.Delete("/documents/{id}", documentsHandler.Delete)

		r.Get("/maintenance", maintenanceHandler.List)
		r.Patch("/maintenance/{id}/status", maintenanceHandler.UpdateStatus)
	})

	return r
}
