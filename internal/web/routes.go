package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/facewatch/internal/web/handlers"
)

// requestTimeout bounds non-streaming API requests.
const requestTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	sessionHandler := handlers.NewSessionHandler(s.deps.Session, s.logger)
	scanHandler := handlers.NewScanHandler(s.deps.Scanner, s.logger)
	eventsHandler := handlers.NewEventsHandler(s.deps.Events, s.deps.Feed, s.logger)
	watchlistHandler := handlers.NewWatchlistHandler(s.deps.Watchlist, s.logger)
	artifactsHandler := handlers.NewArtifactsHandler(s.deps.Artifacts, s.logger)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.Method("GET", "/metrics", s.deps.Metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived streams, no request timeout
		r.Get("/session/stream", sessionHandler.Stream)
		r.Get("/events/ws", eventsHandler.Feed)
		r.Get("/events/stream", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			// Real-time session
			r.Post("/session/start", sessionHandler.Start)
			r.Post("/session/stop", sessionHandler.Stop)
			r.Get("/session", sessionHandler.Status)

			// Single-shot
			r.Post("/scan", scanHandler.Upload)
			r.Post("/scan/capture", scanHandler.Capture)

			// Event history
			r.Get("/events", eventsHandler.List)
			r.Post("/events/similar", eventsHandler.Similar)

			// Watchlist
			r.Get("/watchlist", watchlistHandler.List)
			r.Post("/watchlist/reload", watchlistHandler.Reload)

			// Stored evidence
			r.Get("/artifacts/*", artifactsHandler.Get)

			r.Get("/config", configHandler.Get)
		})
	})
}
