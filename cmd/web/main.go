package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"superstore-dashboard/internal/config"
	"superstore-dashboard/internal/dataset"
	"superstore-dashboard/internal/handlers"
	"superstore-dashboard/internal/middleware"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/server"
	"superstore-dashboard/internal/services"
	"superstore-dashboard/internal/ui/templates"
)

const (
	version        = "1.0.0"
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 30 * time.Second
)

// dashboardPage renders the page for the default selection.
func dashboardPage(dashboard handlers.Dashboard, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		log := observability.LoggerFor(ctx, logger)

		opts, err := dashboard.FilterOptions(ctx)
		if err != nil {
			log.Error("dataset unavailable", "error", err)
			http.Error(w, "The sales dataset could not be loaded.", http.StatusServiceUnavailable)
			return
		}
		spec, err := dashboard.DefaultSpec(ctx)
		if err != nil {
			log.Error("default selection", "error", err)
			http.Error(w, "The sales dataset could not be loaded.", http.StatusServiceUnavailable)
			return
		}
		vm, err := dashboard.View(ctx, spec)
		if err != nil {
			log.Error("render dashboard", "error", err)
			http.Error(w, "The sales dataset could not be loaded.", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := templates.Dashboard(opts, vm).Render(ctx, w); err != nil {
			log.Error("render page", "error", err)
		}
	}
}

// newHandler wraps the routes in the middleware chain. A nil limiter disables
// rate limiting.
func newHandler(cfg *config.Config, dashboard handlers.Dashboard, metrics *observability.Metrics, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardPage(dashboard, logger),
	}
	srv := server.NewServer(dashboard, metrics.Handler(), logger, templateHandlers)

	middlewares := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Logger(logger),
		middleware.Metrics(metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
	}
	if limiter != nil {
		middlewares = append(middlewares, middleware.RateLimit(limiter, logger))
	}

	return middleware.Chain(middlewares...)(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"csv_file", cfg.Database.CSVFile,
		"addr", cfg.Address(),
	)

	shutdownTracing, err := observability.SetupTracing(cfg.Tracing, logger)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	cache := dataset.NewCache(dataset.NewLoader(logger), dataset.CacheOptions{
		SnapshotDir: cfg.Database.CacheDir,
		Observer:    metrics,
		Logger:      logger,
	})
	dashboard := services.NewDashboard(cache, services.Options{
		Path:                   cfg.Database.CSVFile,
		EmptySelectionMeansAll: cfg.Filter.EmptySelectionMeansAll,
		CSVWithBOM:             cfg.Export.CSVBOM,
		Recorder:               metrics,
		Logger:                 logger,
		WarmUpRetries:          cfg.Database.LoadRetries,
		WarmUpInterval:         cfg.Database.RetryInterval,
	})

	ctx, cancel := context.WithTimeout(context.Background(), csvLoadTimeout)
	start := time.Now()
	err = dashboard.WarmUp(ctx)
	cancel()
	if err != nil {
		logger.Error("failed to load CSV data", "error", err)
		os.Exit(1)
	}
	logger.Info("CSV data loaded successfully", "duration", time.Since(start))

	var limiter *middleware.RateLimiter
	if cfg.Security.EnableRateLimit {
		limiter = middleware.NewRateLimiter(cfg.Security)
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, dashboard, metrics, limiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("flushing traces")
		return shutdownTracing(ctx)
	})
	if limiter != nil {
		gracefulServer.RegisterShutdownHook(func(context.Context) error {
			limiter.Stop()
			return nil
		})
	}

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(context.Background()); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
