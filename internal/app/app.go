// Package app wires configuration, logging, metrics, the EDGAR
// pipeline, and the HTTP transport into a runnable application.
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

	"etfoverlap/internal/cache"
	"etfoverlap/internal/config"
	"etfoverlap/internal/edgar"
	apierrors "etfoverlap/internal/errors"
	"etfoverlap/internal/infrastructure"
	"etfoverlap/internal/middleware"
	"etfoverlap/internal/registry"
	"etfoverlap/internal/services"
	transporthttp "etfoverlap/internal/transport/http"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Application holds all application components
type Application struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *infrastructure.Metrics

	registry *registry.Registry
	client   *edgar.Client
	resolver *edgar.Resolver
	cache    *cache.HoldingsCache
	funds    *services.FundService

	errorHandler *apierrors.ErrorHandler
	router       chi.Router
	server       *http.Server
}

// NewApplication creates and wires all application components.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metrics := infrastructure.NewMetrics()

	reg, err := registry.Load(cfg.Edgar.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load fund registry: %w", err)
	}

	client, err := edgar.NewClient(cfg.Edgar, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create edgar client: %w", err)
	}

	resolver := edgar.NewResolver(client, cfg.Edgar.SubmissionsURL, cfg.Edgar.ArchivesURL, logger)

	// A refresh is bounded on its own, not by the triggering caller, so
	// abandoned refreshes still complete for co-waiters. Budget three
	// sequential fetches plus retry backoff.
	refreshTimeout := 3*cfg.Edgar.FetchTimeout + 30*time.Second
	holdingsCache := cache.New(resolver, client, cfg.Edgar.CacheTTL, refreshTimeout, logger, metrics)

	funds := services.NewFundService(reg, holdingsCache, logger)

	app := &Application{
		config:       cfg,
		logger:       logger,
		metrics:      metrics,
		registry:     reg,
		client:       client,
		resolver:     resolver,
		cache:        holdingsCache,
		funds:        funds,
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}

	app.router = app.setupRouter()
	app.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	logger.Info("application initialized",
		slog.Int("port", cfg.Server.Port),
		slog.Int("funds", len(reg.List())),
		slog.String("cache_ttl", cfg.Edgar.CacheTTL.String()),
		slog.String("version", Version),
	)

	return app, nil
}

// setupRouter builds the middleware chain and mounts all routes.
func (a *Application) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestMetrics(a.metrics))
	r.Use(middleware.StructuredLogger(a.logger))
	r.Use(middleware.Recoverer(a.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Compress(5))

	if a.config.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: a.config.Security.AllowedOrigins,
			Logger:         a.logger,
		}))
	}

	if a.config.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			a.config.Security.RateLimit.RPS,
			a.config.Security.RateLimit.Burst,
			a.logger,
		)
		r.Use(limiter.Handler)
	}

	r.Use(middleware.Timeout(a.config.Server.RequestTimeout, a.logger))

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	fundsHandler := transporthttp.NewFundsHandler(a.funds, a.logger, a.errorHandler)
	healthHandler := transporthttp.NewHealthHandler(Version)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/health", healthHandler.Routes())
		r.Mount("/funds", fundsHandler.Routes())
		r.Post("/overlap", fundsHandler.ComputeOverlap)
	})

	r.Handle("/metrics", a.metrics.Handler())

	return r
}

// Run starts the HTTP server and blocks until shutdown.
func (a *Application) Run() error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("server starting", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		a.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}

// Router exposes the configured router. Test use.
func (a *Application) Router() chi.Router {
	return a.router
}
