package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the public probes and the authenticated admin API.
// The API is not mounted without a JWT secret.
func NewRouter(h *Handler, jwtSecret string, metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	if jwtSecret == "" {
		h.logger.Warn("JWT secret not configured; admin API disabled")
		return r
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(JWTAuth([]byte(jwtSecret)))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/rules", h.handleListRules)
			r.Post("/rules", h.handleCreateRule)
			r.Patch("/rules/{id}", h.handlePatchRule)
			r.Delete("/rules/{id}", h.handleDeleteRule)
			r.Get("/executions", h.handleListExecutions)
			r.Get("/due", h.handlePreviewDue)
		})
		// passes carry their own timeout
		r.Post("/passes", h.handleRunPass)
	})

	return r
}
