// Package app assembles the service: configuration, observability, external
// clients, services, router and server lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"kdsops/internal/auth"
	"kdsops/internal/config"
	"kdsops/internal/identity"
	"kdsops/internal/infrastructure"
	"kdsops/internal/license"
	"kdsops/internal/middleware"
	"kdsops/internal/services"
	"kdsops/internal/store"
	handlers "kdsops/internal/transport/http"
	"kdsops/internal/ws"
)

// Application is the assembled service container.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router *chi.Mux
	Server *http.Server

	OTel *infrastructure.OTelProviders
	Hub  *ws.Hub

	Licenses *services.LicenseService
	Chains   *services.ChainService
	Admin    *services.AdminService
	Guard    *auth.Guard
}

// New builds the application from configuration.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize otel: %w", err)
	}

	hub := ws.NewHub(logger)

	provider := identity.NewProvider(cfg.Identity, logger)
	tenantStore := store.New(cfg.Store, logger)

	resolver := license.NewResolver(tenantStore, logger)
	machine := license.NewStateMachine(tenantStore, hub, logger)
	gateway := auth.NewGateway(provider, tenantStore, logger)
	guard := auth.NewGuard(provider, tenantStore, cfg.Identity.JWTSecret, logger)

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		OTel:     otelProviders,
		Hub:      hub,
		Licenses: services.NewLicenseService(resolver, machine, gateway, provider, logger),
		Chains:   services.NewChainService(tenantStore, logger),
		Admin:    services.NewAdminService(tenantStore, gateway, logger),
		Guard:    guard,
	}

	app.Router = app.buildRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

// buildRouter assembles the middleware chain and mounts every handler.
func (a *Application) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   a.Config.Security.AllowedOrigins,
			AllowCredentials: true,
		}))
	}
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.Logger))
	r.Use(middleware.Tracing(a.OTel.Tracer))
	r.Use(middleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	licenseHandler := handlers.NewLicenseHandler(a.Licenses, a.Logger)
	appHandler := handlers.NewAppHandler(a.Licenses, a.Logger)
	chainHandler := handlers.NewChainHandler(a.Licenses, a.Chains, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.Admin, a.Logger)
	healthHandler := handlers.NewHealthHandler()

	r.Get("/healthz", healthHandler.Health)
	r.Get("/version", healthHandler.Version)
	if a.OTel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTel.PrometheusHTTP)
	}
	r.Handle("/ws", a.Hub)

	r.Route("/api", func(r chi.Router) {
		// Public surface. Rate limited so key probing stays expensive.
		r.Group(func(r chi.Router) {
			if a.Config.Security.RateLimit.Enabled {
				limiter := middleware.NewRateLimiter(
					a.Config.Security.RateLimit.RPS,
					a.Config.Security.RateLimit.Burst,
					a.Logger,
				)
				r.Use(limiter.Handler)
			}
			r.Mount("/licenses", licenseHandler.Routes())
			r.Post("/app/auth/activate", appHandler.Activate)
			r.Post("/app/refresh-token", appHandler.Refresh)
			r.Post("/chains/signup", chainHandler.Signup)
			r.Post("/chains/login", chainHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.Guard.RequireOutlet())
			r.Get("/app/status", appHandler.Status)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.Guard.RequireChainOwner())
			r.Get("/chains/outlets", chainHandler.Outlets)
			r.Get("/chains/dashboard", chainHandler.Dashboard)
		})

		r.Mount("/admin", adminHandler.Routes(a.Guard.RequireAdmin()))
	})

	return r
}

// Run starts the hub and HTTP server and blocks until shutdown completes.
func (a *Application) Run() error {
	a.Hub.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.String("version", handlers.Version))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	return a.Shutdown()
}

// Shutdown stops the server, hub and telemetry within the configured grace
// period.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	a.Hub.Stop()
	if err := a.OTel.Shutdown(ctx); err != nil {
		a.Logger.Error("otel shutdown failed", slog.String("error", err.Error()))
	}
	infrastructure.CloseLogFile()

	a.Logger.Info("shutdown complete")
	return nil
}
