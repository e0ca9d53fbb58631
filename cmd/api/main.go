// Package main provides the entrypoint for the itinerary planner API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/viajejapon/planner/internal/api"
	"github.com/viajejapon/planner/internal/api/middleware"
	"github.com/viajejapon/planner/internal/auth"
	"github.com/viajejapon/planner/internal/bootstrap"
	"github.com/viajejapon/planner/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const devSigningKey = "local-dev-signing-key-change-in-production"

func main() {
	const serviceName = "planner-api"

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

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting planner API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	telemetryConfig := telemetry.ConfigFromEnv(serviceName)
	telemetryConfig.ServiceVersion = Version
	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	services, err := bootstrap.New(ctx, bootstrap.ConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize planner services")
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close storage")
		}
	}()
	log.Info().Str("storage", services.Backend.Name).Msg("planner services initialized")

	jwtConfig := auth.ConfigFromEnv()
	if jwtConfig.SigningKey == "" {
		jwtConfig.SigningKey = devSigningKey
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokens, err := auth.NewJWTService(jwtConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize JWT service")
	}
	if telemetryConfig.Environment == "development" {
		if token, _, tokenErr := tokens.IssueAccessToken("usr_dev"); tokenErr == nil {
			log.Info().Str("user_id", "usr_dev").Str("token", token).Msg("development access token")
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		Metrics:        metrics,
		Tokens:         tokens,
		Planner:        services.Planner,
		Trips:          services.Trips,
		FeatureFlags:   services.Flags,
		Upstreams:      services.Upstreams,
		Ready:          services.Backend.Ping,
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AdminUserIDs:   splitList(os.Getenv("ADMIN_USER_IDS")),
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// splitList parses a comma separated environment value.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
