package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/biogate/internal/account"
	"github.com/kozaktomas/biogate/internal/config"
	"github.com/kozaktomas/biogate/internal/database"
	"github.com/kozaktomas/biogate/internal/login"
	"github.com/kozaktomas/biogate/internal/logging"
	"github.com/kozaktomas/biogate/internal/speech"
	"github.com/kozaktomas/biogate/internal/web/middleware"
)

// Dependencies are the collaborators served over HTTP. Transcriber,
// Sessions and Logger are optional.
type Dependencies struct {
	Login       *login.Service
	Accounts    account.Store
	Transcriber speech.Transcriber
	Sessions    database.SessionStore
	Logger      *slog.Logger
}

// Server represents the web server
type Server struct {
	config         *config.Config
	deps           Dependencies
	log            *slog.Logger
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	r := chi.NewRouter()

	log := deps.Logger
	if log == nil {
		log = logging.Discard()
	}

	// Create session manager with optional persistence
	sessionManager := middleware.NewSessionManager(cfg.Web.SessionSecret, cfg.Web.SecureCookies, deps.Sessions, log)

	s := &Server{
		config:         cfg,
		deps:           deps,
		log:            log,
		router:         r,
		sessionManager: sessionManager,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.WithSession(sessionManager))

	// Set up routes
	s.setupRoutes(sessionManager)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE and uploads
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")

	// Stop the session cleanup goroutine
	if s.sessionManager != nil {
		s.sessionManager.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Sessions returns the session manager.
func (s *Server) Sessions() *middleware.SessionManager {
	return s.sessionManager
}
