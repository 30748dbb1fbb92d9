/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/tenancies/*   Tenancy settings, rent state, compliance, ledger
  /api/compliance/queue/*  Regeneration queue inspection and admin retry
  /healthz           Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/tenancies", func(r chi.Router) {
			r.Post("/", h.CreateTenancy)
			r.Get("/{id}/rent-state", h.GetRentState)
			r.Get("/{id}/compliance", h.GetCompliance)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/notices", h.AppendNotice)
			r.Put("/{id}/settings", h.ChangeSettings)
			r.Get("/{id}/export.csv", h.ExportCSV)
		})

		r.Route("/compliance/queue", func(r chi.Router) {
			r.Get("/{id}", h.GetQueueItem)
			r.Post("/{id}/retry", h.RetryQueueItem)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
