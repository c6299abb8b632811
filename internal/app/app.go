package app

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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"agmipx/internal/config"
	"agmipx/internal/dataset"
	apierrors "agmipx/internal/errors"
	"agmipx/internal/exporter"
	"agmipx/internal/infrastructure"
	"agmipx/internal/middleware"
	"agmipx/internal/operations"
	"agmipx/internal/services"
	handlers "agmipx/internal/transport/http"
	"agmipx/internal/validation"
	ws "agmipx/internal/websocket"
	"agmipx/pkg/contracts"
)

const (
	AppName = "AgMIP Explorer"

	runRetention = time.Hour
	cleanupEvery = 10 * time.Minute
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics

	WebSocketHub *ws.Hub
	Broadcaster  *operations.StatusBroadcaster
	Manager      *operations.Manager
	Explorer     *services.ExplorerService
	Health       *services.HealthService

	errors *apierrors.ErrorHandler
	stop   context.CancelFunc
}

// New wires an application from cfg. A missing dataset file is not fatal:
// the server starts and readiness reports not_ready until one is loaded.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logCfg := cfg.Logging
	logCfg.FilePath = paths.LogFile
	logger, err := infrastructure.InitializeLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Any("paths", paths))

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		errors:        apierrors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the pipeline and service layer
func (a *Application) initializeServices() error {
	tracer, err := operations.NewPipelineTracer(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline tracer: %w", err)
	}
	a.Metrics = tracer.Metrics()

	hub := ws.NewHub(a.Logger, a.Metrics)
	hub.Start()
	a.WebSocketHub = hub

	a.Broadcaster = operations.NewStatusBroadcaster(hub, a.Logger)
	a.Manager = operations.NewManager(operations.NewPipelineRegistry(), a.Logger,
		operations.WithBroadcaster(a.Broadcaster),
		operations.WithTracer(tracer),
		operations.WithTimeout(a.Config.Server.PipelineTimeout.Duration),
	)

	loader := dataset.NewLoader(a.Logger, a.Config.Dataset.UseCache)
	exp := exporter.New(a.Paths, exporter.OptionsFrom(a.Config.Display), a.Logger).WithMetrics(a.Metrics)

	a.Explorer = services.NewExplorerService(loader, a.Manager, exp, a.Config.Display, a.Logger)
	a.Health = services.NewHealthService(a.Explorer, hub, a.Paths, a.Logger)

	err = validation.NewFileValidator(a.Logger).ValidateDatasetFile(a.Paths.DatasetFile)
	if err == nil {
		err = a.Explorer.Load(context.Background(), a.Paths.DatasetFile)
	}
	if err != nil {
		a.Logger.Warn("Dataset not loaded; the API will answer 503 until it is",
			slog.String("path", a.Paths.DatasetFile),
			slog.String("error", err.Error()))
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)

	// The websocket route must not sit behind middleware that wraps the writer
	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(apierrors.NewErrorMiddleware(a.errors, a.Logger).Handler)
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.CORS(a.Config.Security.AllowedOrigins))
		if a.Config.Security.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(a.Config.Security.RateLimit, a.errors, a.Logger).Handler)
		}
		r.Use(middleware.MaxBodySize(a.Config.Security.MaxBodyBytes))

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.errors.NotFound)
	r.MethodNotAllowed(a.errors.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := middleware.NewValidator()

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", handlers.NewHealthHandler(a.Health, a.Logger).Routes())
		r.Mount("/", handlers.NewExplorerHandler(a.Explorer, validator, a.errors, a.Logger).Routes())
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout.Duration,
		WriteTimeout:   a.Config.Server.WriteTimeout.Duration,
		IdleTimeout:    a.Config.Server.IdleTimeout.Duration,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start serves HTTP in the background. A listen failure calls cancel so Run
// can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	bg, stop := context.WithCancel(context.Background())
	a.stop = stop
	go a.cleanupRuns(bg)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("url", fmt.Sprintf("http://%s", a.Server.Addr)),
		slog.Bool("dataset_loaded", a.Explorer.Loaded()))
	return nil
}

// cleanupRuns drops old run snapshots until ctx ends
func (a *Application) cleanupRuns(ctx context.Context) {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Broadcaster.CleanupOldRuns(ctx, runRetention)
		}
	}
}

// Stop shuts the server down and releases background resources
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout.Duration)
	defer cancel()

	if a.stop != nil {
		a.stop()
	}
	a.Explorer.Cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Broadcaster.Stop()
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run starts the application and blocks until SIGINT, SIGTERM or a server error
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
