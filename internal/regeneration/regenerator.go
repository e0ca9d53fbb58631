package regeneration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/itinerary"
)

// ErrGeneration wraps failures reported by a generator.
var ErrGeneration = errors.New("activity generation failed")

// Config configures a Regenerator.
type Config struct {
	// Generator is used when RegenerateDay is called without one. Nil selects
	// PlaceholderGenerator.
	Generator Generator
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Regenerator rebuilds days of a trip.
type Regenerator struct {
	generator   Generator
	placeholder bool
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates a Regenerator.
func New(cfg Config) *Regenerator {
	r := &Regenerator{
		generator: cfg.Generator,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if r.generator == nil {
		r.generator = PlaceholderGenerator{}
		r.placeholder = true
		r.logger.Warn().Msg("no activity generator configured, regenerated days will use placeholder activities")
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RegenerateDay builds a new version of the day at dayIndex using the
// option's style. The trip is not modified. gen overrides the configured
// generator when non-nil.
func (r *Regenerator) RegenerateDay(ctx context.Context, trip *itinerary.Trip, dayIndex int, optionID string, gen Generator) (itinerary.Day, error) {
	option, err := LookupOption(optionID)
	if err != nil {
		return itinerary.Day{}, err
	}

	original, err := trip.Day(dayIndex)
	if err != nil {
		return itinerary.Day{}, err
	}

	gc := r.BuildContext(trip, original, option)

	if gen == nil {
		gen = r.generator
	}
	activities, err := gen.GenerateActivitiesForDay(ctx, gc)
	if err != nil {
		return itinerary.Day{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	at := r.now().UTC()
	day := original.Clone()
	day.Activities = activities
	day.Regenerated = true
	day.RegeneratedWith = option.ID
	day.RegeneratedAt = &at
	day.OriginalActivities = original.Activities
	day.Optimization = nil
	metrics := itinerary.ComputeMetrics(day)
	day.Metrics = &metrics

	r.logger.Info().
		Str("trip_id", trip.ID).
		Int("day_index", dayIndex).
		Str("option", option.ID).
		Int("activities", len(activities)).
		Msg("day regenerated")

	return day, nil
}

// BuildContext assembles the generation context for regenerating day with option.
func (r *Regenerator) BuildContext(trip *itinerary.Trip, day itinerary.Day, option Option) itinerary.GenerationContext {
	return option.Apply(itinerary.NewGenerationContext(trip, day))
}

// IntChange compares an integer metric.
type IntChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Change int `json:"change"`
}

// CostChange compares total cost.
type CostChange struct {
	Before        float64 `json:"before"`
	After         float64 `json:"after"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percentChange"`
}

// CategoryChange shows the category histogram before and after.
type CategoryChange struct {
	Before map[string]int `json:"before"`
	After  map[string]int `json:"after"`
}

// Comparison is the difference between an original and a regenerated day.
type Comparison struct {
	Activities IntChange      `json:"activities"`
	Cost       CostChange     `json:"cost"`
	Duration   IntChange      `json:"duration"`
	Categories CategoryChange `json:"categories"`
}

// CompareDay reports how regenerated differs from original.
func CompareDay(original, regenerated itinerary.Day) Comparison {
	before := itinerary.ComputeMetrics(original)
	after := itinerary.ComputeMetrics(regenerated)

	return Comparison{
		Activities: IntChange{
			Before: before.TotalActivities,
			After:  after.TotalActivities,
			Change: after.TotalActivities - before.TotalActivities,
		},
		Cost: CostChange{
			Before:        before.TotalCost,
			After:         after.TotalCost,
			Change:        after.TotalCost - before.TotalCost,
			PercentChange: percentChange(before.TotalCost, after.TotalCost),
		},
		Duration: IntChange{
			Before: before.TotalDuration,
			After:  after.TotalDuration,
			Change: after.TotalDuration - before.TotalDuration,
		},
		Categories: CategoryChange{
			Before: before.Categories,
			After:  after.Categories,
		},
	}
}

// percentChange is rounded to one decimal. A zero baseline reports 0.
func percentChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return math.Round((after-before)/before*1000) / 10
}
