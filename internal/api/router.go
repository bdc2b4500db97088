package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter assembles the chi router with all API routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/flowers", func(r chi.Router) {
			r.Get("/", s.handleListFlowers)
			r.Post("/", s.handleCreateFlower)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetFlower)
				r.Patch("/", s.handleUpdateFlower)
				r.Delete("/", s.handleDeleteFlower)
				r.Post("/commands", s.handleDispatchCommand)
			})
		})

		r.Get("/commands", s.handleListCommands)
		r.Post("/commands/broadcast", s.handleBroadcast)

		r.Route("/buses", func(r chi.Router) {
			r.Get("/", s.handleListBuses)
			r.Post("/", s.handleConnectBus)
			r.Post("/test", s.handleTestBus)
			r.Delete("/{id}", s.handleDisconnectBus)
		})

		r.Route("/shows", func(r chi.Router) {
			r.Get("/", s.handleListShows)
			r.Post("/", s.handleSaveShow)
			r.Get("/status", s.handleShowStatus)
			r.Post("/stop", s.handleStopShow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetShow)
				r.Delete("/", s.handleDeleteShow)
				r.Post("/play", s.handlePlayShow)
			})
		})
	})

	r.Get(s.wsCfg.Path, s.handleWebSocket)

	return r
}

// logRequests logs each request with method, path, status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// handleHealth reports service liveness and version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"flowers": s.registry.Count(),
	})
}
