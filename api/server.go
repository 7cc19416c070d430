/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for frontend
  4. timing:     Prometheus request latency per route

ROUTE GROUPS:
  /api/billing/*              Charge generation and commit
  /api/gyms/{gymID}/*         Per-gym entity listings
  /api/schedules/*            Schedule validation, creation, expansion
  /metrics                    Prometheus scrape endpoint
  /healthz                    Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clubops/gym-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(timing)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Billing routes
		r.Route("/billing", func(r chi.Router) {
			r.Post("/generate", h.GenerateCharges)
			r.Post("/commit", h.CommitCharges)
		})

		// Per-gym listings
		r.Route("/gyms/{gymID}", func(r chi.Router) {
			r.Get("/billing-runs", h.ListBillingRuns)
			r.Get("/members", h.ListMembers)
			r.Get("/plans", h.ListPlans)
			r.Get("/classes", h.ListClasses)
			r.Get("/locations", h.ListLocations)
		})

		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Get("/{id}/charges", h.ListCharges)
		})

		r.Post("/plans", h.CreatePlan)
		r.Post("/memberships", h.CreateMembership)
		r.Post("/charges", h.CreateCharge)
		r.Post("/classes", h.CreateClass)
		r.Post("/locations", h.CreateLocation)

		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", h.CreateSchedule)
			r.Post("/validate", h.ValidateSchedule)
			r.Get("/{id}/instances", h.ListInstances)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// timing records request latency against the chi route pattern.
func timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
