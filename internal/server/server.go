package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/roomgate/roomgate/internal/config"
	apperrors "github.com/roomgate/roomgate/internal/errors"
	"github.com/roomgate/roomgate/internal/observability"
	"github.com/roomgate/roomgate/internal/server/handlers"
	servermw "github.com/roomgate/roomgate/internal/server/middleware"
)

// Deps are the collaborators behind the domain routes. A nil API serves
// only the operational endpoints.
type Deps struct {
	API       *handlers.API
	Admission *servermw.Admission
	Auth      *servermw.Auth

	// AdminToken enables POST /admin/signal when set.
	AdminToken string
	Pprof      bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int
	deps   Deps
}

// New creates a new HTTP server instance
func New(host string, port int, deps Deps) *Server {
	r := chi.NewRouter()

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	if deps.Admission != nil && deps.Admission.Respond == nil {
		deps.Admission.Respond = HandleError
	}
	if deps.Auth != nil && deps.Auth.Respond == nil {
		deps.Auth.Respond = HandleError
	}

	s := &Server{
		router: r,
		host:   host,
		port:   port,
		deps:   deps,
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()

	return s
}

// NewFromConfig builds a server using the HTTP settings of cfg.
func NewFromConfig(cfg *config.Config, deps Deps) *Server {
	deps.ReadTimeout = cfg.Server.ReadTimeout
	deps.WriteTimeout = cfg.Server.WriteTimeout
	deps.IdleTimeout = cfg.Server.IdleTimeout
	deps.Pprof = cfg.Debug.Enabled && cfg.Debug.PprofEnabled
	return New(cfg.Server.Host, cfg.Server.Port, deps)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       orDefault(s.deps.ReadTimeout, 30*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      orDefault(s.deps.WriteTimeout, 30*time.Second),
		IdleTimeout:       orDefault(s.deps.IdleTimeout, 120*time.Second),
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.host),
			zap.Int("port", s.port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
