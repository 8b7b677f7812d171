// Package server wires handlers, middleware and routes, and runs the HTTP
// server.
//
// This is the composition root: stores come in from main, everything
// above them (services, session manager, handlers) is built here.
//
//	main.go:   config → Credential Store + session.Store → server.New
//	server.New: AuthService → SessionManager → Renderer → handlers → routes
//
// The server does not own the stores; main opens and closes them.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/gatehouse/internal/auth"
	"github.com/sakif/gatehouse/internal/handler"
	"github.com/sakif/gatehouse/internal/metrics"
	"github.com/sakif/gatehouse/internal/middleware"
	"github.com/sakif/gatehouse/internal/repository"
	"github.com/sakif/gatehouse/internal/service"
	"github.com/sakif/gatehouse/internal/session"
	"github.com/sakif/gatehouse/web"
)

// Config holds server configuration.
type Config struct {
	Addr      string
	SecretKey string

	SessionLifetime time.Duration
	CookieSecure    bool

	// BcryptCost overrides the production hashing cost; tests set 4.
	BcryptCost int

	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS

	// ShutdownTimeout bounds the graceful drain. Defaults to 30s.
	ShutdownTimeout time.Duration
}

// Deps are the stores the server runs on.
type Deps struct {
	Users    repository.UserRepository
	Sessions session.Store
	// Registry receives the application's collectors. A fresh registry is
	// created when nil.
	Registry *prometheus.Registry
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New assembles the dependency graph and routes.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Users == nil || deps.Sessions == nil {
		return nil, errors.New("server: users and sessions stores are required")
	}
	if cfg.Templates == nil {
		cfg.Templates = web.Templates()
	}
	if cfg.Static == nil {
		cfg.Static = web.Static()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	if err := s.setupRoutes(deps); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and handlers.
//
// ROUTE STRUCTURE:
// GET      /            → home (public)
// GET,POST /register    → registration form (public)
// GET,POST /login       → login form (public)
// GET,POST /dashboard   → protected view (RequireAuth)
// GET,POST /logout      → end session (RequireAuth)
// GET      /static/*    → embedded CSS
// GET      /healthz     → store pings, JSON
// GET      /metrics     → Prometheus exposition
//
// MIDDLEWARE ORDER:
// RequestID → RealIP → Logger → Recoverer → metrics. Logger sits outside
// Recoverer so a recovered panic is still logged with its 500.
func (s *Server) setupRoutes(deps Deps) error {
	m := metrics.New(deps.Registry)

	tokens, err := auth.NewTokenService(s.config.SecretKey)
	if err != nil {
		return err
	}

	passwords := auth.NewPasswordService()
	if s.config.BcryptCost > 0 {
		passwords = auth.NewPasswordServiceForTest(s.config.BcryptCost)
	}

	sessions := auth.NewSessionManager(deps.Sessions, tokens, auth.SessionConfig{
		Lifetime: s.config.SessionLifetime,
		Secure:   s.config.CookieSecure,
	})

	authService := service.NewAuthService(deps.Users, passwords, m, s.logger)

	flashes := handler.NewFlashStore(s.config.SecretKey, s.config.CookieSecure, s.logger)
	render, err := handler.NewRenderer(s.config.Templates, flashes, s.logger)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	authHandler := handler.NewAuthHandler(authService, sessions, render, flashes, m, s.logger)
	pageHandler := handler.NewPageHandler(render)

	checks := map[string]handler.Pinger{"users": deps.Users}
	if p, ok := deps.Sessions.(handler.Pinger); ok {
		checks["sessions"] = p
	}
	healthHandler := handler.NewHealthHandler(checks, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(m.Middleware)

	s.router.NotFound(render.NotFound)
	s.router.MethodNotAllowed(render.MethodNotAllowed)

	// === Infrastructure ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.config.Static))))
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", m.Handler())

	// === Public pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(sessions, authService, s.logger))

		r.Get("/", pageHandler.HandleHome)
		r.Get("/register", authHandler.ShowRegister)
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/login", authHandler.ShowLogin)
		r.Post("/login", authHandler.HandleLogin)
	})

	// === Protected pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(sessions, authService, s.logger))

		r.Get("/dashboard", pageHandler.HandleDashboard)
		r.Post("/dashboard", pageHandler.HandleDashboard)
		r.Get("/logout", authHandler.HandleLogout)
		r.Post("/logout", authHandler.HandleLogout)
	})

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests (ShutdownTimeout)
//  3. Return; main closes the stores afterwards
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
