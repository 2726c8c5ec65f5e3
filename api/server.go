/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for back-office frontends
  5. Verifier:   Bearer token verification, actor into context

ROUTE GROUPS:
  /api/registers/*      Register management and availability
  /api/sessions/*       Session lifecycle and reconciliation
  /healthz              Liveness probe (unauthenticated)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification middleware
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
func NewRouter(h *Handler, verifier *Verifier, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes. Everything under /api requires a verified actor.
	r.Route("/api", func(r chi.Router) {
		r.Use(verifier.Middleware)

		// Register routes
		r.Route("/registers", func(r chi.Router) {
			r.Get("/", h.ListRegisters)
			r.Post("/", h.CreateRegister)
			r.Get("/{id}", h.GetRegister)
			r.Get("/{id}/availability", h.GetRegisterAvailability)
			r.Get("/{id}/current-session", h.GetRegisterCurrentSession)
			r.Get("/{id}/sessions", h.ListRegisterSessions)
		})

		// Session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.OpenSession)
			r.Get("/current", h.GetCurrentSession)
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/cash/add", h.AddCash)
			r.Post("/{id}/cash/remove", h.RemoveCash)
			r.Post("/{id}/payments", h.PostPayment)
			r.Post("/{id}/suspend", h.SuspendSession)
			r.Post("/{id}/resume", h.ResumeSession)
			r.Post("/{id}/close", h.CloseSession)
			r.Post("/{id}/flag", h.FlagSession)
			r.Get("/{id}/movements", h.ListMovements)
			r.Get("/{id}/report", h.GetReport)
			r.Get("/{id}/audit", h.GetAuditTrail)
		})
	})

	return r
}
