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
	"github.com/prometheus/client_golang/prometheus"

	"breadthcli/internal/breadth"
	"breadthcli/internal/config"
	"breadthcli/internal/configstore"
	"breadthcli/internal/infrastructure"
	"breadthcli/internal/perf"
	"breadthcli/internal/services"
	handlers "breadthcli/internal/transport/http"
)

// BuildTime is set at compile time via -ldflags.
var BuildTime = time.Now().Format(time.RFC3339)

// Application is the main dependency container.
type Application struct {
	Config     *config.Config
	Router     *chi.Mux
	Server     *http.Server
	Calculator *breadth.Calculator
	Store      *configstore.Store
	Monitor    *perf.Monitor
	Breadth    *services.BreadthService
	Health     *services.HealthService
	Logger     *slog.Logger
}

// Options customizes application construction. The zero value works.
type Options struct {
	// Source supplies raw records for historical and real-time
	// calculation. Optional; those endpoints fail cleanly without it.
	Source services.RawSource
	// Sink persists calculation results. Optional.
	Sink services.ResultSink
	// Registry overrides the Prometheus registerer. Defaults to the
	// process-wide default registerer.
	Registry prometheus.Registerer
}

// NewApplication builds the full application with dependency injection.
func NewApplication(opts Options) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	monitor := perf.NewMonitor(registry, logger)

	active := breadth.DefaultConfig(breadth.Algorithm(cfg.Breadth.DefaultAlgorithm))
	calculator, err := breadth.NewCalculator(&active, monitor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize calculator: %w", err)
	}
	calculator.SetBatchConcurrency(cfg.Breadth.BatchConcurrency)

	store := configstore.NewStore(logger)
	breadthService := services.NewBreadthService(calculator, store, monitor, opts.Source, opts.Sink, logger)
	healthService := services.NewHealthService(config.AppVersion, BuildTime, breadthService, logger)

	app := &Application{
		Config:     cfg,
		Calculator: calculator,
		Store:      store,
		Monitor:    monitor,
		Breadth:    breadthService,
		Health:     healthService,
		Logger:     logger,
	}

	app.Router = handlers.NewRouter(handlers.RouterDeps{
		Config:  cfg,
		Breadth: breadthService,
		Health:  healthService,
		Logger:  logger,
	})

	app.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.Router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return app, nil
}

// Start begins serving HTTP. Server errors cancel the supplied context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("algorithm", a.Config.Breadth.DefaultAlgorithm),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully shuts the server down.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
