// Package server sets up the HTTP router, route definitions and the
// listen/shutdown lifecycle.
//
// SERVER ARCHITECTURE:
// This package is the HTTP wiring layer. It decides which URL patterns map
// to which handlers and which middleware (auth, roles) guards them. Building
// the services themselves is app.New's job; the server only adapts them to
// HTTP.
//
// DEPENDENCY FLOW:
//
//	main → config.Load → app.New (db, queue, services) → server.New (routes)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/geniesugar/glucose-monitor/internal/app"
	"github.com/geniesugar/glucose-monitor/internal/auth"
	"github.com/geniesugar/glucose-monitor/internal/handler"
	"github.com/geniesugar/glucose-monitor/internal/middleware"
	"github.com/geniesugar/glucose-monitor/internal/model"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server is the HTTP front of an app.App.
type Server struct {
	router *chi.Mux
	app    *app.App
	logger *slog.Logger
}

// New builds the router for a. The server does not own a; the caller closes
// it after Start returns.
func New(a *app.App) *Server {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: a.Logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /metrics                          → Prometheus exposition
//	GET    /api/health                       → liveness + db ping
//	POST   /api/auth/register|login|logout   → public
//	GET    /api/auth/me                      → any authenticated user
//	POST   /api/readings, GET /api/readings  → own timeline
//	POST   /api/sync                         → Dexcom merge
//	PUT    /api/devices/dexcom               → link dexcom_id
//	GET    /api/devices/dexcom/connect|callback
//	GET    /api/patients/summary             → clinician or admin
//	POST   /api/patients/{id}/comments       → clinician or admin
//	GET    /api/patients/{id}/comments       → clinician, admin, or that patient
//	POST   /api/food-logs, GET /api/food-logs
//	POST   /api/ai/chat
//	DELETE /api/admin/users/{id}             → admin
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the access log can include it; Recoverer sits
// inside Logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() {
	cfg := s.app.Config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.app.Metrics))
	s.router.Use(chimiddleware.Recoverer)

	rs := handler.Responder{Logger: s.logger, Debug: !cfg.IsProduction()}

	authHandler := handler.NewAuthHandler(s.app.Auth, cfg.Auth.SecureCookies, rs)
	readingHandler := handler.NewReadingHandler(s.app.Readings, s.app.Sync, rs)
	deviceHandler := handler.NewDeviceHandler(s.app.Devices, cfg.Auth.SecureCookies, rs)
	patientHandler := handler.NewPatientHandler(s.app.Summary, s.app.Comments, rs)
	foodLogHandler := handler.NewFoodLogHandler(s.app.FoodLogs, rs)
	chatHandler := handler.NewChatHandler(s.app.Chat, rs)
	adminHandler := handler.NewAdminHandler(s.app.Admin, rs)
	healthHandler := handler.NewHealthHandler(s.app.DB, rs)

	s.router.Handle("/metrics", s.app.Metrics.Handler())

	clinicians := auth.RequireRole(model.ClinicianRoles...)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		// Everything below requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.app.Tokens))

			r.Get("/auth/me", authHandler.HandleMe)

			r.Post("/readings", readingHandler.HandleCreate)
			r.Get("/readings", readingHandler.HandleList)
			r.Post("/sync", readingHandler.HandleSync)

			r.Put("/devices/dexcom", deviceHandler.HandleLink)
			r.Get("/devices/dexcom/connect", deviceHandler.HandleConnect)
			r.Get("/devices/dexcom/callback", deviceHandler.HandleCallback)

			r.Post("/food-logs", foodLogHandler.HandleCreate)
			r.Get("/food-logs", foodLogHandler.HandleList)

			r.Post("/ai/chat", chatHandler.HandleChat)

			// Patients may read their own comments; CommentService
			// enforces that, so this route is not role-gated.
			r.Get("/patients/{id}/comments", patientHandler.HandleListComments)

			r.With(clinicians).Get("/patients/summary", patientHandler.HandleSummary)
			r.With(clinicians).Post("/patients/{id}/comments", patientHandler.HandleCreateComment)

			r.With(auth.RequireRole(model.RoleAdmin)).Delete("/admin/users/{id}", adminHandler.HandleDeleteUser)
		})
	})
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to shutdownTimeout for in-flight requests
//  3. Return; the caller then closes the app, which drains the
//     notification queue and closes the database
func (s *Server) Start(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Sync and chat wait on third-party APIs with their own timeouts.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", port),
			slog.String("env", s.app.Config.Env),
			slog.String("database", s.app.Config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
