// Package bootstrap builds the planner's service graph from configuration.
// Both binaries share it so the API and the worker see the same storage,
// flags and upstreams.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/featureflags"
	"github.com/viajejapon/planner/internal/generator"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/optimizer"
	"github.com/viajejapon/planner/internal/planner"
	"github.com/viajejapon/planner/internal/preference"
	"github.com/viajejapon/planner/internal/regeneration"
	"github.com/viajejapon/planner/internal/resilience"
	"github.com/viajejapon/planner/internal/storage"
)

// Config holds everything needed to build the services.
type Config struct {
	Storage storage.BackendConfig

	// GeneratorURL enables the remote activity generator. Empty keeps the
	// placeholder generator.
	GeneratorURL    string
	GeneratorAPIKey string

	// OptimizerWorkers evaluates fitness in parallel when above 1.
	OptimizerWorkers int

	// FlagCacheTTL defaults to one minute.
	FlagCacheTTL time.Duration
}

// ConfigFromEnv reads GENERATOR_URL, GENERATOR_API_KEY, OPTIMIZER_WORKERS
// and the storage variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Storage:          storage.ConfigFromEnv(),
		GeneratorURL:     os.Getenv("GENERATOR_URL"),
		GeneratorAPIKey:  os.Getenv("GENERATOR_API_KEY"),
		OptimizerWorkers: 1,
		FlagCacheTTL:     time.Minute,
	}
	if n, err := strconv.Atoi(os.Getenv("OPTIMIZER_WORKERS")); err == nil && n > 0 {
		cfg.OptimizerWorkers = n
	}
	return cfg
}

// Services is the wired planner.
type Services struct {
	Backend   *storage.Backend
	Flags     *featureflags.Service
	Planner   *planner.Service
	Trips     itinerary.Repository
	Upstreams *resilience.Registry
}

// New opens storage and wires the planner around it. Feature flags live in
// Postgres when that backend is selected and in memory otherwise.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Services, error) {
	backend, err := storage.Open(ctx, cfg.Storage, log, featureflags.Schema)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}

	var flagRepo featureflags.Repository = featureflags.NewInMemoryRepository()
	if backend.Pool != nil {
		flagRepo = featureflags.NewPostgresRepository(backend.Pool)
	}
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   cfg.FlagCacheTTL,
	})

	upstreams := resilience.NewRegistry()
	var gen regeneration.Generator
	if cfg.GeneratorURL != "" {
		rc := resilience.DefaultClientConfig(generator.UpstreamName)
		rc.Registry = upstreams
		rc.Logger = log
		gen = generator.NewClient(generator.ClientConfig{
			BaseURL:    cfg.GeneratorURL,
			APIKey:     cfg.GeneratorAPIKey,
			HTTPClient: resilience.NewClient(rc),
			Logger:     log,
		})
		log.Info().Str("url", cfg.GeneratorURL).Msg("remote activity generator configured")
	}

	svc := planner.NewService(planner.ServiceConfig{
		Preferences: preference.NewService(preference.ServiceConfig{Store: backend.Store, Logger: log}),
		Optimizer: optimizer.New(optimizer.Config{
			Params:  optimizer.DefaultParams(),
			Workers: cfg.OptimizerWorkers,
			Logger:  log,
		}),
		Regenerator: regeneration.New(regeneration.Config{Generator: gen, Logger: log}),
		History:     regeneration.NewHistoryStore(backend.Store),
		Flags:       flags,
		Logger:      log,
	})

	return &Services{
		Backend:   backend,
		Flags:     flags,
		Planner:   svc,
		Trips:     itinerary.NewStoreRepository(backend.Store),
		Upstreams: upstreams,
	}, nil
}

// Close releases storage.
func (s *Services) Close() error {
	return s.Backend.Close()
}
