// Package planner ties preference learning, the rule engine, the route
// optimizer and day regeneration together behind one service used by the
// HTTP API and the background worker.
package planner

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/featureflags"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/optimizer"
	"github.com/viajejapon/planner/internal/preference"
	"github.com/viajejapon/planner/internal/regeneration"
	"github.com/viajejapon/planner/internal/rules"
)

// Score multipliers applied on top of the preference score.
const (
	PrioritizeBoost = 1.5
	AvoidPenalty    = 0.5
)

// Rules evaluates expert rules for a generation context.
type Rules interface {
	Evaluate(gc itinerary.GenerationContext) rules.Evaluation
	SuggestImprovements(trip *itinerary.Trip, gc itinerary.GenerationContext) rules.Improvements
}

// Flags exposes the runtime switches the planner consults.
type Flags interface {
	IsRouteOptimizationDisabled(ctx context.Context) bool
	IsExpertRulesDisabled(ctx context.Context) bool
	IsPreferenceScoringDisabled(ctx context.Context) bool
	OptimizerPopulationSize(ctx context.Context) int
	OptimizerGenerations(ctx context.Context) int
}

// ServiceConfig holds the planner's collaborators. Preferences, Optimizer
// and Regenerator are required.
type ServiceConfig struct {
	Preferences *preference.Service
	Optimizer   *optimizer.Optimizer
	Regenerator *regeneration.Regenerator

	// Rules defaults to the built-in rule engine.
	Rules Rules
	// History is optional; without it regenerations are not recorded.
	History *regeneration.HistoryStore
	// Flags defaults to the built-in flag values.
	Flags Flags

	Logger zerolog.Logger
	Now    func() time.Time
}

// Service is the planner façade. It is safe for concurrent use.
type Service struct {
	prefs       *preference.Service
	optimizer   *optimizer.Optimizer
	regenerator *regeneration.Regenerator
	rules       Rules
	history     *regeneration.HistoryStore
	flags       Flags
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a planner service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		prefs:       cfg.Preferences,
		optimizer:   cfg.Optimizer,
		regenerator: cfg.Regenerator,
		rules:       cfg.Rules,
		history:     cfg.History,
		flags:       cfg.Flags,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if s.rules == nil {
		s.rules = rules.NewEngine(rules.Config{Logger: cfg.Logger})
	}
	if s.flags == nil {
		s.flags = featureflags.NewService(featureflags.ServiceConfig{
			Repository: featureflags.NewInMemoryRepository(),
			Logger:     cfg.Logger,
		})
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// EnhancedContext is a generation context refined with the user's learned
// preferences and the rule engine's decisions.
type EnhancedContext struct {
	itinerary.GenerationContext
	Insights     preference.Insights `json:"mlInsights"`
	AppliedRules []string            `json:"appliedRules"`
}

// EnhanceGenerationContext merges preference insights and rule decisions
// into gc. Prioritize and avoid lists are unioned with what gc already
// carries; must-include places are unioned by name and city.
func (s *Service) EnhanceGenerationContext(ctx context.Context, userID string, gc itinerary.GenerationContext) (EnhancedContext, error) {
	model, err := s.prefs.Model(ctx, userID)
	if err != nil {
		return EnhancedContext{}, fmt.Errorf("loading preference model: %w", err)
	}

	out := EnhancedContext{
		GenerationContext: gc,
		Insights:          model.Insights(),
		AppliedRules:      []string{},
	}
	out.PrioritizeCategories = itinerary.Union(gc.PrioritizeCategories, nil)
	out.AvoidCategories = itinerary.Union(gc.AvoidCategories, nil)
	out.MustInclude = append([]itinerary.MustInclude{}, gc.MustInclude...)

	if s.flags.IsExpertRulesDisabled(ctx) {
		s.logger.Debug().Str("user_id", userID).Msg("expert rules disabled, context enhanced with preferences only")
		return out, nil
	}

	eval := s.rules.Evaluate(gc)
	d := eval.Decisions
	out.AppliedRules = eval.ApplicableRules
	out.ExpertAdjustments = d.Adjustments
	out.PrioritizeCategories = itinerary.Union(out.PrioritizeCategories, d.Prioritize)
	out.AvoidCategories = itinerary.Union(out.AvoidCategories, d.Avoid)
	out.MustInclude = unionMustInclude(out.MustInclude, d.MustInclude)
	out.Tips = d.Tips
	out.Messages = d.Messages

	s.logger.Debug().
		Str("user_id", userID).
		Strs("rules", eval.ApplicableRules).
		Int("prioritize", len(out.PrioritizeCategories)).
		Int("avoid", len(out.AvoidCategories)).
		Msg("generation context enhanced")

	return out, nil
}

func unionMustInclude(a, b []itinerary.MustInclude) []itinerary.MustInclude {
	type key struct{ name, city string }
	seen := make(map[key]struct{}, len(a)+len(b))
	out := make([]itinerary.MustInclude, 0, len(a)+len(b))
	for _, list := range [][]itinerary.MustInclude{a, b} {
		for _, m := range list {
			k := key{m.Name, m.City}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// ScoredActivity is an activity annotated with its preference score and the
// score after rule multipliers.
type ScoredActivity struct {
	itinerary.Activity
	MLScore          float64                   `json:"mlScore"`
	FinalScore       float64                   `json:"finalScore"`
	MLRecommendation preference.Recommendation `json:"mlRecommendation"`
	MLReasons        []string                  `json:"mlReasons"`
}

// ScoreActivities ranks activities by final score, highest first. The final
// score is the preference score multiplied by PrioritizeBoost when the
// category is in gc.PrioritizeCategories and by AvoidPenalty when it is in
// gc.AvoidCategories; a category in both lists gets both. Equal scores keep
// input order.
func (s *Service) ScoreActivities(ctx context.Context, userID string, activities []itinerary.Activity, gc itinerary.GenerationContext) ([]ScoredActivity, error) {
	model := preference.NewModel()
	if !s.flags.IsPreferenceScoringDisabled(ctx) {
		var err error
		if model, err = s.prefs.Model(ctx, userID); err != nil {
			return nil, fmt.Errorf("loading preference model: %w", err)
		}
	}

	scored := make([]ScoredActivity, len(activities))
	for i, a := range activities {
		p := model.Predict(a)
		final := p.Score
		if itinerary.Contains(gc.PrioritizeCategories, a.Category) {
			final *= PrioritizeBoost
		}
		if itinerary.Contains(gc.AvoidCategories, a.Category) {
			final *= AvoidPenalty
		}
		scored[i] = ScoredActivity{
			Activity:         a,
			MLScore:          p.Score,
			FinalScore:       final,
			MLRecommendation: p.Recommendation,
			MLReasons:        p.Reasons,
		}
	}

	slices.SortStableFunc(scored, func(a, b ScoredActivity) int {
		return cmp.Compare(b.FinalScore, a.FinalScore)
	})
	return scored, nil
}

// TrackAction records a user action in their preference model.
func (s *Service) TrackAction(ctx context.Context, userID string, e preference.Event) (*preference.Model, error) {
	return s.prefs.Track(ctx, userID, e)
}

// Stats summarises what the planner has learned about a user.
type Stats struct {
	Predictor     preference.Insights `json:"predictor"`
	TopCategories []preference.Ranked `json:"topCategories"`
	TopInterests  []preference.Ranked `json:"topInterests"`
	TotalActions  int                 `json:"totalActions"`
}

// Stats returns the user's preference summary.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	model, err := s.prefs.Model(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("loading preference model: %w", err)
	}
	return Stats{
		Predictor:     model.Insights(),
		TopCategories: model.TopCategories(5),
		TopInterests:  model.TopInterests(10),
		TotalActions:  model.TotalActions,
	}, nil
}

// ReviewTrip lists missing must-see places and poorly sequenced days.
func (s *Service) ReviewTrip(trip *itinerary.Trip, gc itinerary.GenerationContext) rules.Improvements {
	return s.rules.SuggestImprovements(trip, gc)
}

// RegenerationStats returns the regeneration summary of a trip.
func (s *Service) RegenerationStats(ctx context.Context, tripID string) (regeneration.Stats, error) {
	if s.history == nil {
		return regeneration.Stats{}, nil
	}
	return s.history.Stats(ctx, tripID)
}

// ResetPreferences discards the user's learned preference model.
func (s *Service) ResetPreferences(ctx context.Context, userID string) error {
	return s.prefs.Reset(ctx, userID)
}
