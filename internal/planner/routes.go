package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/viajejapon/planner/internal/geo"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/optimizer"
	"github.com/viajejapon/planner/internal/regeneration"
)

// MinActivitiesToOptimize is the smallest day the route search runs on.
const MinActivitiesToOptimize = 3

// MethodGeneticAlgorithm identifies the route search in optimization metadata.
const MethodGeneticAlgorithm = "genetic_algorithm"

// Skip reasons recorded on a day's optimization metadata.
const (
	ReasonDisabled    = "route optimization disabled"
	ReasonInterrupted = "interrupted before all generations ran"
)

// ErrOptimizationPanic is logged when the route search panics.
var ErrOptimizationPanic = errors.New("route optimization panicked")

// OptimizeOptions pins parts of the route. Nil fields fall back to the
// day's own anchors.
type OptimizeOptions struct {
	FixedStart *itinerary.Activity `json:"fixedStart,omitempty"`
	FixedEnd   *itinerary.Activity `json:"fixedEnd,omitempty"`
	Hotel      *itinerary.Activity `json:"hotel,omitempty"`
}

// OptimizeRoutes reorders the day's activities to shorten travel. Days with
// fewer than MinActivitiesToOptimize activities are returned unchanged. A
// failing search is logged and the day is returned unchanged; it never
// fails the caller.
func (s *Service) OptimizeRoutes(ctx context.Context, day itinerary.Day, opts OptimizeOptions) itinerary.Day {
	log := s.logger.With().Int("day", day.DayNumber).Logger()

	if len(day.Activities) < MinActivitiesToOptimize {
		log.Info().Int("activities", len(day.Activities)).Msg("not enough activities to optimize")
		return day
	}

	if s.flags.IsRouteOptimizationDisabled(ctx) {
		log.Info().Msg("route optimization disabled by feature flag")
		out := day.Clone()
		out.Optimization = &itinerary.Optimization{
			Skipped:     true,
			Reason:      ReasonDisabled,
			OptimizedAt: s.now().UTC(),
		}
		return out
	}

	anchors := optimizer.Anchors{
		FixedStart: firstNonNil(opts.FixedStart, day.FixedStart),
		FixedEnd:   firstNonNil(opts.FixedEnd, day.FixedEnd),
		Hotel:      firstNonNil(opts.Hotel, day.Hotel),
	}

	result, err := s.search(ctx, day.Activities, anchors)
	if err != nil {
		log.Error().Err(err).Msg("route optimization failed, keeping original order")
		return day
	}

	out := day.Clone()
	out.Activities = result.Route
	metrics := itinerary.ComputeMetrics(out)
	out.Metrics = &metrics
	out.Optimization = &itinerary.Optimization{
		Applied:          true,
		TotalDistanceKm:  result.TotalDistanceKm,
		TotalTimeMinutes: result.TotalTimeMinutes,
		Improvement:      result.Improvement,
		Method:           MethodGeneticAlgorithm,
		OptimizedAt:      s.now().UTC(),
	}
	if result.Interrupted {
		out.Optimization.Reason = ReasonInterrupted
	}
	if box, ok := geo.Bounds(coordinates(result.Route)); ok {
		out.Optimization.Bounds = &box
	}

	log.Info().
		Float64("distance_km", result.TotalDistanceKm).
		Float64("improvement_pct", result.Improvement).
		Msg("route optimized")

	return out
}

// search runs the optimizer with flag-controlled parameters, turning a panic
// into an error.
func (s *Service) search(ctx context.Context, activities []itinerary.Activity, anchors optimizer.Anchors) (result *optimizer.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrOptimizationPanic, rec)
		}
	}()

	params := s.optimizer.Params()
	params.PopulationSize = s.flags.OptimizerPopulationSize(ctx)
	params.Generations = s.flags.OptimizerGenerations(ctx)
	return s.optimizer.WithParams(params).Optimize(ctx, activities, anchors)
}

func firstNonNil(candidates ...*itinerary.Activity) *itinerary.Activity {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func coordinates(route []itinerary.Activity) []geo.Point {
	points := make([]geo.Point, 0, len(route))
	for _, a := range route {
		if a.Coordinates != nil {
			points = append(points, *a.Coordinates)
		}
	}
	return points
}

// Regeneration is the outcome of regenerating one day.
type Regeneration struct {
	Day        itinerary.Day           `json:"day"`
	Comparison regeneration.Comparison `json:"comparison"`
}

// RegenerateDay rebuilds the day at dayIndex with the given style, then
// re-optimizes its route around the trip's hotel. gen overrides the
// configured generator when non-nil. The trip is not modified. Failing to
// record history is logged, not returned.
func (s *Service) RegenerateDay(ctx context.Context, trip *itinerary.Trip, dayIndex int, optionID string, gen regeneration.Generator) (Regeneration, error) {
	day, err := s.regenerator.RegenerateDay(ctx, trip, dayIndex, optionID, gen)
	if err != nil {
		return Regeneration{}, err
	}

	optimized := s.OptimizeRoutes(ctx, day, OptimizeOptions{Hotel: trip.Hotel})
	comparison := regeneration.CompareDay(trip.Days[dayIndex], optimized)

	if s.history != nil {
		tripID := trip.ID
		if tripID == "" {
			tripID = "temp"
		}
		if err := s.history.Append(ctx, tripID, dayIndex, optimized.RegeneratedWith, &comparison); err != nil {
			s.logger.Warn().Err(err).Str("trip_id", tripID).Msg("failed to record regeneration history")
		}
	}

	return Regeneration{Day: optimized, Comparison: comparison}, nil
}
