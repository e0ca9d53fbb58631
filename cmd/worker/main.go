// Package main provides the entrypoint for the planner background worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/bootstrap"
	"github.com/viajejapon/planner/internal/telemetry"
	"github.com/viajejapon/planner/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "planner-worker"

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Warn().Err(err).Msg("failed to load .env file")
	}

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting planner worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryConfig := telemetry.ConfigFromEnv(serviceName)
	telemetryConfig.ServiceVersion = Version
	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	services, err := bootstrap.New(ctx, bootstrap.ConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize planner services")
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close storage")
		}
	}()

	workerConfig := worker.ConfigFromEnv()
	processor := worker.NewProcessor(worker.ProcessorConfig{
		Config:  workerConfig,
		Planner: services.Planner,
		Trips:   services.Trips,
		Logger:  log,
	})

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		Config:    workerConfig,
		Processor: processor,
		Logger:    log,
	})
	switch {
	case errors.Is(err, worker.ErrSubscriptionNotConfigured):
		log.Warn().Msg("pubsub not configured, worker will only serve health checks")
	case err != nil:
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	default:
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()
		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
				cancel()
			}
		}()
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // best effort
			"status":  "healthy",
			"version": Version,
			"storage": services.Backend.Name,
			"metrics": processor.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
