package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/convoy/internal/api"
	"github.com/UnknownOlympus/convoy/internal/config"
	"github.com/UnknownOlympus/convoy/internal/geocoding"
	"github.com/UnknownOlympus/convoy/internal/grouping"
	"github.com/UnknownOlympus/convoy/internal/metrics"
	"github.com/UnknownOlympus/convoy/internal/rebalance"
	"github.com/UnknownOlympus/convoy/internal/repository"
	"github.com/UnknownOlympus/convoy/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// Server timeouts.
const (
	readTimeout     = 5 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// providerRateBudget is the request budget per second shared by all workers
// for providers without their own default.
const providerRateBudget = 50

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	geoProvider, err := geocoding.NewProvider(providerConfig(cfg, logger))
	if err != nil {
		log.Fatalf("Failed to create geocoding provider: %v", err)
	}
	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.ProviderType)

	observer := rebalance.Observers{
		rebalance.NewLogObserver(ctx, logger),
		appMetrics.RebalanceObserver(),
	}
	grouper := grouping.NewGrouper(logger, grouping.Options{
		Clusters:  cfg.Grouping.Clusters,
		Seed:      cfg.Grouping.Seed,
		Rebalance: cfg.Grouping.Rebalance,
		MinSize:   cfg.Grouping.MinSize,
		MaxSize:   cfg.Grouping.MaxSize,
	}, observer)

	locator := service.NewLocator(logger, geoProvider, cfg.ProviderType, appMetrics, cfg.Workers, cfg.AddrPrefix)
	planner := service.NewPlanner(logger, locator, grouper, appMetrics)

	var pinger api.Pinger
	if cfg.Database.Enabled() {
		// Initialize the database connection.
		dtb, errDB := repository.NewDatabase(ctx,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if errDB != nil {
			log.Fatalf("Failed to connect to DB: %v", errDB)
		}
		defer dtb.Close()

		repo := repository.NewRepository(dtb, logger)
		if errDB = repo.Migrate(ctx); errDB != nil {
			log.Fatalf("Failed to prepare DB schema: %v", errDB)
		}
		pinger = repo

		groupingService := service.NewGroupingService(
			logger, repo, planner, locator, appMetrics, cfg.Interval, cfg.PlotDir,
		)
		go groupingService.Run(ctx)
	} else {
		logger.WarnContext(ctx, "Database is not configured, batch grouping is disabled")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewServer(logger, planner, appMetrics, reg, pinger).Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	// Start the API server in a goroutine to allow main to listen for signals.
	go func() {
		logger.InfoContext(ctx, "Starting API server", "port", cfg.Port)
		if errSrv := server.ListenAndServe(); errSrv != nil && !errors.Is(errSrv, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "API server failed", "error", errSrv)
			stop()
		}
	}()

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "Failed to shut down API server", "error", err)
	}

	// Log graceful shutdown completion.
	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")
}

// providerConfig builds the geocoding provider configuration. Nominatim keeps its own
// default rate; other providers share a fixed budget across workers.
func providerConfig(cfg *config.Config, logger *slog.Logger) geocoding.ProviderConfig {
	providerType := geocoding.ProviderType(cfg.ProviderType)

	rateLimit := 0
	if providerType != geocoding.ProviderTypeNominatim {
		rateLimit = max(providerRateBudget/cfg.Workers, 1)
	}

	return geocoding.ProviderConfig{
		Type:      providerType,
		APIKey:    cfg.APIKey,
		RateLimit: rateLimit,
		Logger:    logger,
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
