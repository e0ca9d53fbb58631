package optimizer

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/viajejapon/planner/internal/itinerary"
)

const instrumentationName = "github.com/viajejapon/planner/internal/optimizer"

// GenerationStats records the population of one generation.
type GenerationStats struct {
	Generation      int     `json:"generation"`
	BestCost        float64 `json:"bestFitness"`
	BestDistanceKm  float64 `json:"bestDistance"`
	BestTimeMinutes float64 `json:"bestTime"`
	AvgCost         float64 `json:"avgFitness"`
}

// Result is the outcome of an optimization run.
type Result struct {
	Route            []itinerary.Activity `json:"route"`
	TotalDistanceKm  float64              `json:"totalDistance"`
	TotalTimeMinutes float64              `json:"totalTime"`
	Generations      []GenerationStats    `json:"generations"`
	Improvement      float64              `json:"improvement"`

	// Interrupted is set when the context ended before all generations ran.
	Interrupted bool `json:"interrupted,omitempty"`
}

// EvolutionData is the per-generation series used for charts.
type EvolutionData struct {
	Generations []int     `json:"generations"`
	BestFitness []float64 `json:"bestFitness"`
	AvgFitness  []float64 `json:"avgFitness"`
	Improvement float64   `json:"improvement"`
}

// EvolutionData returns the run history as parallel series.
func (r *Result) EvolutionData() EvolutionData {
	data := EvolutionData{
		Generations: make([]int, len(r.Generations)),
		BestFitness: make([]float64, len(r.Generations)),
		AvgFitness:  make([]float64, len(r.Generations)),
		Improvement: r.Improvement,
	}
	for i, g := range r.Generations {
		data.Generations[i] = g.Generation
		data.BestFitness[i] = g.BestCost
		data.AvgFitness[i] = g.AvgCost
	}
	return data
}

// Optimizer runs the genetic route search. It holds no per-run state and is
// safe for concurrent use.
type Optimizer struct {
	cfg    Config
	tracer trace.Tracer

	duration    metric.Float64Histogram
	improvement metric.Float64Histogram
}

// New creates an Optimizer.
func New(cfg Config) *Optimizer {
	cfg.Params = cfg.Params.withDefaults()
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(instrumentationName)
	}
	if cfg.Meter == nil {
		cfg.Meter = otel.Meter(instrumentationName)
	}

	o := &Optimizer{cfg: cfg, tracer: cfg.Tracer}

	var err error
	o.duration, err = cfg.Meter.Float64Histogram(
		"planner.optimizer.duration",
		metric.WithDescription("Duration of route optimization runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create optimizer duration histogram")
	}
	o.improvement, err = cfg.Meter.Float64Histogram(
		"planner.optimizer.improvement",
		metric.WithDescription("Cost improvement of the best route over the first generation"),
		metric.WithUnit("%"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create optimizer improvement histogram")
	}

	return o
}

// Params returns the effective algorithm settings.
func (o *Optimizer) Params() Params {
	return o.cfg.Params
}

// WithParams returns a copy of the optimizer using p. Zero fields in p fall
// back to defaults; RateOff disables crossover or mutation.
func (o *Optimizer) WithParams(p Params) *Optimizer {
	clone := *o
	clone.cfg.Params = p.withDefaults()
	return &clone
}

// Optimize orders activities to minimise travel cost. Activities whose ID
// matches an anchor are removed from the search and the anchors are placed
// at the ends of the returned route. When the context ends between
// generations the best route found so far is returned with Interrupted set.
func (o *Optimizer) Optimize(ctx context.Context, activities []itinerary.Activity, anchors Anchors) (*Result, error) {
	params := o.cfg.Params

	ctx, span := o.tracer.Start(ctx, "optimizer.Optimize",
		trace.WithAttributes(
			attribute.Int("optimizer.activities", len(activities)),
			attribute.Int("optimizer.population_size", params.PopulationSize),
			attribute.Int("optimizer.generations", params.Generations),
		),
	)
	defer span.End()

	if err := validate(activities, anchors); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	optimizable := make([]itinerary.Activity, 0, len(activities))
	for _, a := range activities {
		if anchors.FixedStart != nil && a.ID == anchors.FixedStart.ID {
			continue
		}
		if anchors.FixedEnd != nil && a.ID == anchors.FixedEnd.ID {
			continue
		}
		optimizable = append(optimizable, a)
	}

	if len(optimizable) == 0 {
		return &Result{Route: wrapRoute(nil, anchors), Generations: []GenerationStats{}}, nil
	}

	started := time.Now()
	rng := o.newRand()
	eval := newEvaluator(optimizable, anchors)

	population := InitialPopulation(rng, len(optimizable), params.PopulationSize)
	history := make([]GenerationStats, 0, params.Generations)
	interrupted := false

	for gen := 0; gen < params.Generations; gen++ {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		ranked, err := o.rank(ctx, eval, population)
		if err != nil {
			interrupted = true
			break
		}

		stats := GenerationStats{
			Generation:      gen,
			BestCost:        ranked[0].fitness.TotalCost,
			BestDistanceKm:  ranked[0].fitness.TotalDistanceKm,
			BestTimeMinutes: ranked[0].fitness.TotalTimeMinutes,
		}
		for _, c := range ranked {
			stats.AvgCost += c.fitness.TotalCost
		}
		stats.AvgCost /= float64(len(ranked))
		history = append(history, stats)

		if gen%10 == 0 {
			o.cfg.Logger.Debug().
				Int("generation", gen).
				Float64("best_km", stats.BestCost).
				Float64("avg_km", stats.AvgCost).
				Msg("optimizer progress")
		}

		population = o.breed(rng, ranked, params)
	}

	// The final population is ranked without the cancellable context so an
	// interrupted run still reports its best route.
	final, err := o.rank(context.WithoutCancel(ctx), eval, population)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ranking final population")
		return nil, fmt.Errorf("ranking final population: %w", err)
	}
	best := final[0]

	route := make([]itinerary.Activity, len(best.order))
	for i, idx := range best.order {
		route[i] = optimizable[idx]
	}

	result := &Result{
		Route:            wrapRoute(route, anchors),
		TotalDistanceKm:  best.fitness.TotalDistanceKm,
		TotalTimeMinutes: best.fitness.TotalTimeMinutes,
		Generations:      history,
		Improvement:      improvement(history),
		Interrupted:      interrupted,
	}

	elapsed := time.Since(started)
	if o.duration != nil {
		o.duration.Record(ctx, elapsed.Seconds())
	}
	if o.improvement != nil {
		o.improvement.Record(ctx, result.Improvement)
	}
	span.SetAttributes(
		attribute.Float64("optimizer.total_distance_km", result.TotalDistanceKm),
		attribute.Float64("optimizer.improvement_pct", result.Improvement),
		attribute.Bool("optimizer.interrupted", interrupted),
	)

	o.cfg.Logger.Info().
		Int("activities", len(optimizable)).
		Int("generations", len(history)).
		Float64("distance_km", result.TotalDistanceKm).
		Float64("improvement_pct", result.Improvement).
		Bool("interrupted", interrupted).
		Dur("duration", elapsed).
		Msg("route optimized")

	return result, nil
}

type candidate struct {
	order   Permutation
	fitness Fitness
}

// rank evaluates every ordering and sorts them by ascending cost. Ties keep
// population order.
func (o *Optimizer) rank(ctx context.Context, eval *evaluator, population []Permutation) ([]candidate, error) {
	ranked := make([]candidate, len(population))

	if o.cfg.Workers < 2 {
		for i, p := range population {
			ranked[i] = candidate{order: p, fitness: eval.evaluate(p)}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.Workers)
		for i, p := range population {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				ranked[i] = candidate{order: p, fitness: eval.evaluate(p)}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("evaluating population: %w", err)
		}
	}

	slices.SortStableFunc(ranked, func(a, b candidate) int {
		return cmp.Compare(a.fitness.TotalCost, b.fitness.TotalCost)
	})
	return ranked, nil
}

// breed builds the next generation: the elite survive unchanged, the rest are
// crossover children or clones of survivors, then mutated.
func (o *Optimizer) breed(rng *rand.Rand, ranked []candidate, params Params) []Permutation {
	survivorCount := int(math.Ceil(float64(params.PopulationSize) * params.SurvivalRate))
	survivorCount = max(1, min(survivorCount, len(ranked)))
	survivors := ranked[:survivorCount]

	eliteCount := min(params.EliteCount, survivorCount, params.PopulationSize)

	next := make([]Permutation, 0, params.PopulationSize)
	for _, c := range survivors[:eliteCount] {
		next = append(next, c.order.Clone())
	}

	for len(next) < params.PopulationSize {
		if rng.Float64() < params.CrossoverRate {
			p1 := survivors[rng.IntN(len(survivors))].order
			p2 := survivors[rng.IntN(len(survivors))].order
			next = append(next, Crossover(rng, p1, p2))
		} else {
			next = append(next, survivors[rng.IntN(len(survivors))].order.Clone())
		}
	}

	for i := eliteCount; i < len(next); i++ {
		if rng.Float64() < params.MutationRate {
			next[i] = Mutate(rng, next[i])
		}
	}
	return next
}

func (o *Optimizer) newRand() *rand.Rand {
	if o.cfg.Seed != 0 {
		return rand.New(rand.NewPCG(o.cfg.Seed, o.cfg.Seed>>1|1))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func wrapRoute(route []itinerary.Activity, anchors Anchors) []itinerary.Activity {
	out := make([]itinerary.Activity, 0, len(route)+2)
	if anchors.FixedStart != nil {
		out = append(out, *anchors.FixedStart)
	}
	out = append(out, route...)
	if anchors.FixedEnd != nil {
		out = append(out, *anchors.FixedEnd)
	}
	return out
}

// improvement is the percentage drop in best cost from the first to the last
// recorded generation.
func improvement(history []GenerationStats) float64 {
	if len(history) < 2 {
		return 0
	}
	first := history[0].BestCost
	last := history[len(history)-1].BestCost
	if first == 0 {
		return 0
	}
	return (first - last) / first * 100
}

func validate(activities []itinerary.Activity, anchors Anchors) error {
	for _, a := range activities {
		if a.Coordinates == nil {
			continue
		}
		if err := a.Coordinates.Validate(); err != nil {
			return fmt.Errorf("activity %s: %w", a.ID, err)
		}
	}
	for _, a := range []*itinerary.Activity{anchors.FixedStart, anchors.FixedEnd, anchors.Hotel} {
		if a == nil || a.Coordinates == nil {
			continue
		}
		if err := a.Coordinates.Validate(); err != nil {
			return fmt.Errorf("anchor %s: %w", a.ID, err)
		}
	}
	return nil
}
