/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This
  is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for internal dashboards

SECURITY NOTE:
  Authentication is owned by the gateway in front of this service; nothing
  here inspects credentials.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Expense reconciliation: the CRUD layer calls these after each
		// expense create/update/delete.
		r.Route("/expenses/reconcile", func(r chi.Router) {
			r.Post("/", h.ReconcileExpenseCreate)
			r.Post("/amend", h.ReconcileExpenseAmend)
			r.Post("/remove", h.ReconcileExpenseRemove)
		})

		// Dashboard projection
		r.Get("/budgets/view", h.GetBudgetView)

		// Operator endpoints
		r.Route("/admin/rollover", func(r chi.Router) {
			r.Post("/", h.TriggerRollover)
			r.Get("/runs", h.ListRolloverRuns)
		})
	})

	return r
}
