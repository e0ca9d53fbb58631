package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/database"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// BackendConfig selects and configures the store shared by the planner
// binaries.
type BackendConfig struct {
	Backend  string
	Database database.Config
	Redis    RedisConfig
	SQLite   string

	// CacheTTL puts a CachedStore in front of non-memory backends. Zero
	// disables the cache.
	CacheTTL time.Duration
}

// ConfigFromEnv reads STORAGE_BACKEND, STORAGE_CACHE_TTL, REDIS_ADDR,
// REDIS_PASSWORD, REDIS_DB, SQLITE_PATH and the DB_* variables.
func ConfigFromEnv() BackendConfig {
	cfg := BackendConfig{
		Backend:  getEnv("STORAGE_BACKEND", BackendMemory),
		Database: database.ConfigFromEnv(),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			Prefix:   "planner:",
		},
		SQLite:   getEnv("SQLITE_PATH", "planner.db"),
		CacheTTL: time.Minute,
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.Redis.DB = db
	}
	if ttl, err := time.ParseDuration(os.Getenv("STORAGE_CACHE_TTL")); err == nil {
		cfg.CacheTTL = ttl
	}
	return cfg
}

// Backend is an opened store plus the resources behind it.
type Backend struct {
	Store Store
	Name  string

	// Pool is set for the postgres backend so other repositories can share
	// the connections.
	Pool *pgxpool.Pool

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks the backend connection. The memory backend is always ready.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects to the configured backend. For postgres the schema
// statements are applied after connecting, following PostgresSchema.
func Open(ctx context.Context, cfg BackendConfig, log zerolog.Logger, schema ...string) (*Backend, error) {
	var b *Backend
	switch cfg.Backend {
	case BackendMemory, "":
		return &Backend{Store: NewMemoryStore(), Name: BackendMemory}, nil

	case BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		statements := append([]string{PostgresSchema}, schema...)
		if err := database.EnsureSchema(ctx, pool, statements...); err != nil {
			pool.Close()
			return nil, err
		}
		b = &Backend{
			Store: NewPostgresStore(pool),
			Pool:  pool,
			ping:  pool.Ping,
			close: func() error { pool.Close(); return nil },
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

	case BackendRedis:
		store, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b = &Backend{Store: store, ping: store.Ping, close: store.Close}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

	case BackendSQLite:
		store, err := OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, err
		}
		b = &Backend{Store: store, ping: store.Ping, close: store.Close}
		log.Info().Str("path", cfg.SQLite).Msg("sqlite opened")

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	b.Name = cfg.Backend
	if cfg.CacheTTL > 0 {
		b.Store = NewCachedStore(b.Store, cfg.CacheTTL)
	}
	return b, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
