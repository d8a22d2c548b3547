package web

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/biogate/internal/guard"
	"github.com/kozaktomas/biogate/internal/web/handlers"
	"github.com/kozaktomas/biogate/internal/web/middleware"
	"github.com/kozaktomas/biogate/internal/web/static"
)

// pages are the client-side routes. Everything else outside the API and
// the assets redirects home.
var pages = []string{"/", "/user-select", "/login", "/protected", "/record_voice"}

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(sessionManager)
	accountsHandler := handlers.NewAccountsHandler(s.deps.Accounts, s.log)
	attemptsHandler := handlers.NewAttemptsHandler(s.deps.Login, sessionManager, s.deps.Transcriber, s.log)
	facesHandler := handlers.NewFacesHandler(s.deps.Login, s.log)
	configHandler := handlers.NewConfigHandler(s.config, s.deps.Login.Options())

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		r.Get("/config", configHandler.Get)

		// User selection
		r.Get("/accounts", accountsHandler.List)
		r.Get("/accounts/{id}", accountsHandler.Get)
		r.Get("/accounts/{id}/picture", accountsHandler.Picture)

		// Login attempts
		r.Post("/login/attempts", attemptsHandler.Start)
		r.Get("/login/attempts/{id}", attemptsHandler.Get)
		r.Post("/login/attempts/{id}/capture", attemptsHandler.Capture)
		r.Get("/login/attempts/{id}/events", attemptsHandler.Events)
		r.Delete("/login/attempts/{id}", attemptsHandler.Cancel)

		// Face identification is only offered to logged-in accounts
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))
			r.Post("/faces/identify", facesHandler.Identify)
		})
	})

	// Guarded pages
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Guard())
		for _, p := range pages {
			r.Get(p, s.servePage)
		}
	})

	s.router.Get("/record", s.redirectRecord)
	s.router.Get("/assets/*", s.serveAsset)
	s.router.NotFound(redirectHome)
}

// servePage serves the single-page application shell
func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, "/index.html")
}

// serveAsset serves a built frontend asset
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	if !s.serveFile(w, path.Clean(r.URL.Path)) {
		http.NotFound(w, r)
	}
}

// redirectRecord sends the browser to the audio service's recording page.
func (s *Server) redirectRecord(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSuffix(s.config.Audio.AuthURL, "/") + "/record"
	http.Redirect(w, r, target, http.StatusFound)
}

// redirectHome handles unknown paths.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, guard.HomePath, http.StatusFound)
}

// serveFile writes an embedded file and reports whether it existed.
func (s *Server) serveFile(w http.ResponseWriter, name string) bool {
	if !static.Built() {
		return false
	}
	f, err := static.Open(strings.TrimPrefix(name, "/"))
	if err != nil {
		return false
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		return false
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(name, ".html"):
		contentType = "text/html; charset=utf-8"
	case strings.HasSuffix(name, ".css"):
		contentType = "text/css; charset=utf-8"
	case strings.HasSuffix(name, ".js"):
		contentType = "application/javascript; charset=utf-8"
	case strings.HasSuffix(name, ".svg"):
		contentType = "image/svg+xml"
	case strings.HasSuffix(name, ".png"):
		contentType = "image/png"
	case strings.HasSuffix(name, ".ico"):
		contentType = "image/x-icon"
	case strings.HasSuffix(name, ".woff2"):
		contentType = "font/woff2"
	}
	w.Header().Set("Content-Type", contentType)

	// Add cache headers for static assets
	if strings.HasPrefix(name, "/assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}

	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
	return true
}
