package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/displays", func(r chi.Router) {
			r.Get("/", s.handleListDisplays)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", s.handleGetDisplay)
				r.Get("/info", s.handleDisplayInfo)
				r.Get("/inputs", s.handleDisplayInputs)
				r.Get("/routing-ports", s.handleDisplayRoutingPorts)
				r.Get("/joinmap", s.handleDisplayJoinMap)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status with device counts.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"bus":     s.busID,
	}
	if s.status != nil {
		counts := s.status.StatusCounts()
		body["devices"] = counts
		if counts.Offline() > 0 {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}
