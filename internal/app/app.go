package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
	"mfledger/internal/exporter"
	"mfledger/internal/fetcher"
	"mfledger/internal/infrastructure"
	"mfledger/internal/journal"
	"mfledger/internal/ledger"
	"mfledger/internal/locator"
	customMiddleware "mfledger/internal/middleware"
	"mfledger/internal/services"
	handlers "mfledger/internal/transport/http"
	"mfledger/internal/updater"
	ws "mfledger/internal/websocket"
	"mfledger/pkg/contracts"
)

// Options customizes an Application beyond its configuration.
type Options struct {
	// Progress additionally receives runner progress, e.g. for console output.
	Progress updater.ProgressFunc
	// HTTPClient replaces the outbound client used by the locator.
	HTTPClient *http.Client
	// Funds replaces the registry named by the configuration.
	Funds *config.FundRegistry
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Funds         *config.FundRegistry
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.IngestMetrics

	Journal      *journal.Journal
	Store        *ledger.XLSXStore
	Fetcher      *fetcher.Fetcher
	Runner       *updater.Runner
	WebSocketHub *ws.Hub

	LedgerService *services.LedgerService
	SyncService   *services.SyncService
	HealthService *services.HealthService

	Router *chi.Mux
	Server *http.Server

	listener net.Listener
}

// New builds the application from cfg. The HTTP router is created but nothing
// is started; commands use the services directly and serve calls Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to resolve paths", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, apperrors.NewStorageError("failed to ensure directories", err)
	}

	funds := opts.Funds
	if funds == nil {
		if funds, err = config.LoadFunds(paths.FundsFile); err != nil {
			return nil, apperrors.NewConfigError("failed to load fund registry", err)
		}
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateIngestMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Funds:         funds,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := a.initializeServices(ctx, opts); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()

	logger.InfoContext(ctx, "Application initialized",
		slog.String("version", contracts.Version),
		slog.String("root", paths.Root),
		slog.String("ledgers_dir", paths.LedgersDir),
		slog.Int("funds", len(funds.Funds)))
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context, opts Options) error {
	j, err := journal.Open(ctx, a.Paths.Journal, a.Logger)
	if err != nil {
		return err
	}
	a.Journal = j

	a.WebSocketHub = ws.NewHub(a.Logger, a.OTelProviders.Meter)

	deps := locator.Deps{
		Client:  locator.NewClient(a.Config.Fetch, opts.HTTPClient, a.Logger),
		Metrics: a.Metrics,
		Logger:  a.Logger,
	}
	if a.Config.Fetch.BrowserEnabled {
		deps.Browser = locator.NewBrowserCollector(a.Config.Fetch.UserAgent, a.Config.Fetch.BrowserTimeout, a.Logger)
	}
	registry, err := fetcher.NewRegistryFrom(a.Funds, deps)
	if err != nil {
		return apperrors.NewConfigError("failed to build fetch sources", err)
	}

	a.Fetcher = fetcher.New(registry, fetcher.Options{
		Sink:    fetcher.MultiSink{a.Journal, a.WebSocketHub},
		Metrics: a.Metrics,
		Tracer:  a.OTelProviders.Tracer,
		Logger:  a.Logger,
	})
	a.Store = ledger.NewXLSXStore(a.Paths.LedgersDir, a.Funds, a.Logger)

	progress := a.WebSocketHub.Progress
	if opts.Progress != nil {
		progress = func(ctx context.Context, p updater.Progress) {
			a.WebSocketHub.Progress(ctx, p)
			opts.Progress(ctx, p)
		}
	}
	a.Runner = updater.NewRunner(a.Fetcher, a.Store, updater.Options{
		Concurrency: a.Config.Update.FundConcurrency,
		Progress:    progress,
		Metrics:     a.Metrics,
		Tracer:      a.OTelProviders.Tracer,
		Logger:      a.Logger,
	})

	a.LedgerService = services.NewLedgerService(a.Funds, a.Store, a.Journal,
		exporter.NewCSVWriter(a.Paths.ExportsDir, a.Logger), a.Logger)
	a.SyncService = services.NewSyncService(a.Funds, a.Runner, services.SyncOptions{
		Broadcaster: a.WebSocketHub,
		DefaultYear: a.Config.Update.Year,
		Timeout:     a.Config.Server.SyncTimeout,
		Logger:      a.Logger,
	})
	a.HealthService = services.NewHealthService(a.Funds, a.Paths.LedgersDir, a.WebSocketHub, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// The websocket upgrade must not see wrapped response writers.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Get("/ws", a.WebSocketHub.Handler(a.Config.WebSocket))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := apperrors.NewErrorHandler(a.Logger, customMiddleware.GetRequestID)
	validator := customMiddleware.NewValidator()

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)

		r.Mount("/funds", handlers.NewFundHandler(a.LedgerService, a.Logger, errorHandler).Routes())
		r.Get("/compare", handlers.NewCompareHandler(a.LedgerService, a.Logger, errorHandler).Compare)
		r.Mount("/sync", handlers.NewSyncHandler(a.SyncService, validator, a.Logger, errorHandler).Routes())
	})
}

// Start binds the listener and serves in the background. A serve failure
// calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.WebSocketHub.Start()

	a.Server = &http.Server{
		Addr:        fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:     a.Router,
		ReadTimeout: a.Config.Server.ReadTimeout,
		// Websocket connections manage their own write deadlines.
		WriteTimeout: 0,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", ln.Addr().String()),
		slog.String("version", contracts.Version))
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the server, cancels running syncs and releases
// resources.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if err := a.SyncService.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("sync shutdown error: %w", err))
	}
	a.WebSocketHub.Stop()

	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the journal and telemetry providers. It is safe on a
// partially initialized Application.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal close error: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown error: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled or the process is interrupted.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")
	return a.Stop(context.WithoutCancel(ctx))
}
