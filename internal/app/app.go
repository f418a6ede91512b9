package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"rowmatch/internal/config"
	apierrors "rowmatch/internal/errors"
	"rowmatch/internal/infrastructure"
	customMiddleware "rowmatch/internal/middleware"
	"rowmatch/internal/services"
	handlers "rowmatch/internal/transport/http"
	"rowmatch/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	ErrorHandler  *apierrors.ErrorHandler
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Compare *services.CompareService
	Health  *services.HealthService
}

// NewApplication creates a new application instance. The logger is the
// process logger created by the caller from cfg.Logging.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("version", contracts.Version),
		slog.String("address", cfg.Server.Addr()))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.NewCompareMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create comparison metrics: %w", err)
	}

	a.Services = &ServiceContainer{
		Compare: services.NewCompareService(a.Config.Matching, a.Logger,
			services.WithTracer(a.OTelProviders.Tracer),
			services.WithMetrics(metrics),
		),
		Health: services.NewHealthService(),
	}
	return nil
}

// setupRouter configures the middleware chain and routes.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimiter
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Prometheus scrapes bypass the rate limiter
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Mount("/api", a.apiRoutes())
	})

	a.Router = r
	return nil
}

// apiRoutes builds the /api subtree
func (a *Application) apiRoutes() chi.Router {
	compare := handlers.NewCompareHandler(a.Services.Compare, handlers.CompareHandlerConfig{
		RequestTimeout: a.Config.Server.RequestTimeout,
		MaxUploadBytes: a.Config.Matching.MaxUploadBytes,
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		WebSocket:      a.Config.WebSocket,
	}, a.Logger, a.ErrorHandler)
	health := handlers.NewHealthHandler(a.Services.Health)

	r := health.Routes()
	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)
	r.Mount("/v1/compare", compare.Routes())
	return r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("version", contracts.Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://%s", a.Server.Addr)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Stopping application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.ErrorContext(ctx, "Application stopped with errors", slog.String("error", err.Error()))
		return err
	}
	a.Logger.InfoContext(ctx, "Application stopped")
	return nil
}

// Run starts the application and blocks until SIGINT, SIGTERM or a
// listener failure, then shuts down gracefully
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.InfoContext(ctx, "Shutdown requested")

	return a.Stop(ctx)
}
