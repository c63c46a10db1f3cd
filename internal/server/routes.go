package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/observability"
	"github.com/roomgate/roomgate/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	if s.deps.Pprof {
		s.router.Mount("/debug", middleware.Profiler())
	}

	s.registerAPIRoutes()
	s.registerAdminEndpoint()
}

// registerAPIRoutes mounts the room and status endpoints. Rate limiting
// runs ahead of authentication so unauthenticated floods are counted too.
func (s *Server) registerAPIRoutes() {
	api := s.deps.API
	if api == nil {
		return
	}

	limit := func(category core.Category) func(http.Handler) http.Handler {
		return s.deps.Admission.Limit(category)
	}
	requireAuth := s.deps.Auth.Require(nil)
	authUnlessSynthetic := s.deps.Auth.Require(func(*http.Request) bool {
		return api.Rooms == nil || !api.Rooms.Configured()
	})

	s.router.Group(func(r chi.Router) {
		r.Use(limit(core.CategoryStatus), requireAuth)
		r.Post("/status/{kind}/toggle", api.ToggleStatus)
		r.Get("/status", api.GetStatus)
	})

	s.router.With(limit(core.CategoryRead)).Get("/rooms", api.ListRooms)
	s.router.With(limit(core.CategoryRead), authUnlessSynthetic).Get("/rooms/{name}", api.GetRoom)
	s.router.With(limit(core.CategoryToken), requireAuth).Post("/rooms/token", api.IssueToken)
	s.router.With(limit(core.CategoryAuth), requireAuth).Get("/auth/session", api.Session)
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.deps.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no ROOMGATE_ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.deps.AdminToken,
		RateLimit: 10,  // requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
