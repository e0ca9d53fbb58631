package featureflags

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL bounds how stale a flag read can be.
	// Default: 1 minute
	CacheTTL time.Duration
}

// Service answers the planner's flag questions. Reads go through a TTL cache
// and fall back to DefaultFlags when the repository fails, so a database
// outage never changes planner behaviour.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	defaults map[string]*Flag
	cache    *cache.Cache
	now      func() time.Time
}

// NewService creates a flag service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		defaults: DefaultFlags(),
		cache:    cache.New(ttl, 2*ttl),
		now:      time.Now,
	}
}

// GetFlag returns the flag for key from the cache, the repository or the
// defaults, in that order. Unknown keys yield nil.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if v, ok := s.cache.Get(key); ok {
		return v.(*Flag)
	}

	flag, err := s.repo.GetFlag(ctx, key)
	switch {
	case err == nil:
		s.cache.SetDefault(key, flag)
		return flag
	case !errors.Is(err, ErrFlagNotFound):
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to read feature flag, using default")
	}
	return s.defaults[key]
}

// GetAllFlags returns stored flags layered over the defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	out := maps.Clone(s.defaults)

	stored, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read feature flags, using defaults")
		return out
	}
	for key, flag := range stored {
		out[key] = flag
		s.cache.SetDefault(key, flag)
	}
	return out
}

// SetFlag validates and stores one flag.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	return s.SetFlags(ctx, []*Flag{flag})
}

// SetFlags validates and stores flags together. Nothing is written when any
// flag is invalid.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	for _, f := range flags {
		if err := Validate(f); err != nil {
			return err
		}
	}

	at := s.now().UTC()
	for _, f := range flags {
		f.UpdatedAt = at
	}
	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return fmt.Errorf("storing feature flags: %w", err)
	}
	for _, f := range flags {
		s.cache.SetDefault(f.Key, f)
	}
	return nil
}

// InvalidateCache drops cached values so the next read hits the repository.
func (s *Service) InvalidateCache() {
	s.cache.Flush()
}

func (s *Service) IsRouteOptimizationDisabled(ctx context.Context) bool {
	return s.GetFlag(ctx, FlagDisableRouteOptimization).BoolValue(false)
}

func (s *Service) IsExpertRulesDisabled(ctx context.Context) bool {
	return s.GetFlag(ctx, FlagDisableExpertRules).BoolValue(false)
}

func (s *Service) IsPreferenceScoringDisabled(ctx context.Context) bool {
	return s.GetFlag(ctx, FlagDisablePreferenceScoring).BoolValue(false)
}

// OptimizerPopulationSize returns the route search population. Stored values
// below 1 fall back to DefaultOptimizerPopulationSize.
func (s *Service) OptimizerPopulationSize(ctx context.Context) int {
	return s.count(ctx, FlagOptimizerPopulationSize, DefaultOptimizerPopulationSize)
}

// OptimizerGenerations returns the route search length. Stored values below
// 1 fall back to DefaultOptimizerGenerations.
func (s *Service) OptimizerGenerations(ctx context.Context) int {
	return s.count(ctx, FlagOptimizerGenerations, DefaultOptimizerGenerations)
}

func (s *Service) count(ctx context.Context, key string, fallback int) int {
	if n := s.GetFlag(ctx, key).IntValue(fallback); n > 0 {
		return n
	}
	return fallback
}
