package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/auth"
	"github.com/felixgeelhaar/codeburst/internal/config"
	"github.com/felixgeelhaar/codeburst/internal/view"
)

// Server represents the CodeBurst daemon HTTP server
type Server struct {
	app     *app.Context
	cfg     *config.LocalConfig
	version string
	started time.Time

	server  *http.Server
	router  *http.ServeMux
	pages   *view.Renderer
	limiter ratelimit.RateLimiter
	cookie  auth.CookieConfig
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	App     *app.Context
	Version string
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("daemon: app context is required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	pages, err := view.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	c := cfg.App.Config
	s := &Server{
		app:     cfg.App,
		cfg:     c,
		version: cfg.Version,
		started: time.Now(),
		router:  http.NewServeMux(),
		pages:   pages,
		cookie: auth.CookieConfig{
			Name:   c.Auth.CookieName,
			Secure: c.Auth.CookieSecure,
			MaxAge: c.Auth.SessionMaxAge(),
		},
	}

	if rate := c.Daemon.RunRatePerSecond; rate > 0 {
		s.limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 3,
			Interval: time.Second,
		})
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         c.Daemon.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: c.Runner.Timeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = auth.Middleware(s.app.Auth, s.cookie)(h)
	h = loggingMiddleware(h)
	h = correlationIDMiddleware(h)
	return recoveryMiddleware(h)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Steps
	s.router.HandleFunc("GET /v1/steps", s.handleListSteps)
	s.router.HandleFunc("GET /v1/steps/{id}", s.handleGetStep)
	s.router.HandleFunc("POST /v1/steps/reload", s.requireUser(s.handleReloadSteps))

	// Runs
	s.router.HandleFunc("POST /v1/run", rateLimitMiddleware(s.limiter, s.handleRun))

	// Progress
	s.router.HandleFunc("GET /v1/progress", s.requireUser(s.handleGetProgress))
	s.router.HandleFunc("PUT /v1/progress/step", s.requireUser(s.handleSetStep))
	s.router.HandleFunc("POST /v1/progress/complete", s.requireUser(s.handleComplete))

	// Auth
	s.router.HandleFunc("POST /v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /v1/auth/logout", s.handleLogout)
	s.router.HandleFunc("GET /v1/auth/me", s.requireUser(s.handleMe))

	// Preferences
	s.router.HandleFunc("GET /v1/preferences/theme", s.handleGetTheme)
	s.router.HandleFunc("POST /v1/preferences/theme/toggle", s.handleToggleTheme)

	// Pages
	s.router.HandleFunc("GET /{$}", s.page(view.PageHome, s.renderStatic(view.PageHome, "")))
	s.router.HandleFunc("GET /login", s.page(view.PageLogin, s.renderStatic(view.PageLogin, "Log in")))
	s.router.HandleFunc("GET /signup", s.page(view.PageSignup, s.renderStatic(view.PageSignup, "Sign up")))
	s.router.HandleFunc("GET /callback", s.page(view.PageCallback, s.renderStatic(view.PageCallback, "Signing in")))
	s.router.HandleFunc("GET /error", s.page(view.PageError, s.renderStatic(view.PageError, "Error")))
	s.router.HandleFunc("GET /dashboard", s.page(view.PageDashboard, s.renderDashboard))
	s.router.HandleFunc("POST /login", s.handleLoginForm)
	s.router.HandleFunc("POST /signup", s.handleSignupForm)
	s.router.HandleFunc("POST /logout", s.handleLogoutForm)

	// Everything else
	s.router.HandleFunc("/", s.handleNotFound)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting codeburst daemon",
		"addr", s.server.Addr,
		"version", s.version,
		"storage", s.app.Storage.Driver,
		"runner", s.runnerName(),
		"progress_writer", s.cfg.Progress.Writer,
	)
	return s.server.ListenAndServe()
}

// RunSessionCleanup removes expired sessions every interval until ctx ends
func (s *Server) RunSessionCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.app.Auth.CleanupExpiredSessions(ctx)
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired sessions removed", "count", n)
			}
		}
	}
}

// Shutdown stops accepting requests, then drains pending progress writes
// and releases the application resources within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)

	if s.limiter != nil {
		if cerr := s.limiter.Close(); cerr != nil {
			slog.Warn("failed to close rate limiter", "error", cerr)
		}
	}
	if cerr := s.app.Close(ctx); cerr != nil {
		slog.Warn("failed to close application", "error", cerr)
		err = errors.Join(err, cerr)
	}
	return err
}

func (s *Server) runnerName() string {
	if s.app.Runner == nil {
		return "none"
	}
	return s.app.Runner.Stats().Executor
}
