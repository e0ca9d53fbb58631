// Package api provides the HTTP API of the itinerary planner.
package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/viajejapon/planner/internal/api/handler"
	"github.com/viajejapon/planner/internal/api/middleware"
	"github.com/viajejapon/planner/internal/featureflags"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/planner"
	"github.com/viajejapon/planner/internal/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	Metrics        *middleware.Metrics

	Tokens       middleware.TokenValidator
	Planner      *planner.Service
	Trips        itinerary.Repository
	FeatureFlags *featureflags.Service
	Upstreams    *resilience.Registry
	Ready        func(ctx context.Context) error

	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// AdminUserIDs may use the admin endpoints; empty allows any
	// authenticated user.
	AdminUserIDs []string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware, order matters
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing(cfg.TracerProvider))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Upstreams: cfg.Upstreams,
		Ready:     cfg.Ready,
		Logger:    cfg.Logger,
	})
	dayHandler := handler.NewDayHandler(cfg.Planner)
	meHandler := handler.NewMeHandler(cfg.Planner, cfg.Logger)
	tripHandler := handler.NewTripHandler(cfg.Planner, cfg.Trips, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlags, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Tokens)
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Stateless planning endpoints (public)
		r.With(standardRateLimit).Get("/regeneration/options", dayHandler.ListRegenerationOptions)
		r.With(standardRateLimit).Post("/days:compare", dayHandler.CompareDays)
		r.With(expensiveRateLimit).Post("/days:optimize", dayHandler.OptimizeDay)

		// Me endpoints (authenticated), limited per user
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))

			r.Post("/context:enhance", meHandler.EnhanceContext)
			r.Post("/activities:score", meHandler.ScoreActivities)

			r.Route("/preferences", func(r chi.Router) {
				r.Delete("/", meHandler.ResetPreferences)
				r.Post("/events", meHandler.TrackPreferenceEvent)
				r.Get("/insights", meHandler.GetPreferenceInsights)
			})

			r.Route("/trips/{tripId}", func(r chi.Router) {
				r.Get("/", tripHandler.GetTrip)
				r.Put("/", tripHandler.PutTrip)
				r.Post("/review", tripHandler.ReviewTrip)
				r.Get("/regenerations/stats", tripHandler.RegenerationStats)
				r.With(middleware.RateLimitByUser(middleware.ExpensiveRateLimit)).
					Post("/days/{dayIndex}/regenerate", tripHandler.RegenerateDay)
			})
		})

		// Admin endpoints (authenticated)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireUsers(cfg.AdminUserIDs))
			r.Use(standardRateLimit)

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
