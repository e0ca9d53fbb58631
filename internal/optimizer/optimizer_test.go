package optimizer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/viajejapon/planner/internal/geo"
	"github.com/viajejapon/planner/internal/itinerary"
)

func at(id string, lat, lng float64) itinerary.Activity {
	return itinerary.Activity{ID: id, Name: id, Coordinates: &geo.Point{Lat: lat, Lng: lng}}
}

// line returns n activities evenly spaced eastwards along a parallel, in
// shuffled input order.
func line(n int) []itinerary.Activity {
	acts := make([]itinerary.Activity, n)
	for i := 0; i < n; i++ {
		acts[i] = at(fmt.Sprintf("p%d", i), 35.0, 135.0+0.01*float64(i))
	}
	// evens ascending then odds descending
	shuffled := make([]itinerary.Activity, 0, n)
	for i := 0; i < n; i += 2 {
		shuffled = append(shuffled, acts[i])
	}
	odd := n - 1
	if odd%2 == 0 {
		odd--
	}
	for i := odd; i >= 1; i -= 2 {
		shuffled = append(shuffled, acts[i])
	}
	return shuffled
}

func lineLength(n int) float64 {
	acts := make([]itinerary.Activity, n)
	for i := range acts {
		acts[i] = at(fmt.Sprintf("p%d", i), 35.0, 135.0+0.01*float64(i))
	}
	return Evaluate(acts, Anchors{}).TotalDistanceKm
}

func ids(route []itinerary.Activity) []string {
	out := make([]string, len(route))
	for i, a := range route {
		out[i] = a.ID
	}
	return out
}

func TestEvaluate(t *testing.T) {
	a := at("a", 35.0, 135.00)
	b := at("b", 35.0, 135.01)
	c := at("c", 35.0, 135.02)
	ab := geo.Distance(a.Coordinates, b.Coordinates)
	bc := geo.Distance(b.Coordinates, c.Coordinates)

	t.Run("straight line has no penalty", func(t *testing.T) {
		f := Evaluate([]itinerary.Activity{a, b, c}, Anchors{})
		assert.InDelta(t, ab+bc, f.TotalDistanceKm, 1e-9)
		assert.InDelta(t, f.TotalDistanceKm*MinutesPerKm, f.TotalTimeMinutes, 1e-9)
		assert.Equal(t, 0.0, f.BacktrackingPenalty)
		assert.Equal(t, f.TotalDistanceKm, f.TotalCost)
	})

	t.Run("going back is penalised", func(t *testing.T) {
		f := Evaluate([]itinerary.Activity{a, c, b}, Anchors{})
		assert.Equal(t, BacktrackPenaltyKm, f.BacktrackingPenalty)
		assert.InDelta(t, f.TotalDistanceKm+BacktrackPenaltyKm, f.TotalCost, 1e-9)
	})

	t.Run("hotel adds a return leg", func(t *testing.T) {
		hotel := at("hotel", 35.0, 135.00)
		f := Evaluate([]itinerary.Activity{a, b, c}, Anchors{Hotel: &hotel})
		assert.InDelta(t, ab+bc+ab+bc, f.TotalDistanceKm, 1e-6)
		assert.Equal(t, 0.0, f.BacktrackingPenalty, "hotel leg is not part of the backtracking check")
	})

	t.Run("anchors wrap the route", func(t *testing.T) {
		f := Evaluate([]itinerary.Activity{b}, Anchors{FixedStart: &a, FixedEnd: &c})
		assert.InDelta(t, ab+bc, f.TotalDistanceKm, 1e-9)
	})

	t.Run("missing coordinates use default leg", func(t *testing.T) {
		x := itinerary.Activity{ID: "x"}
		f := Evaluate([]itinerary.Activity{a, x}, Anchors{})
		assert.Equal(t, geo.DefaultDistanceKm, f.TotalDistanceKm)
	})

	t.Run("empty route costs nothing", func(t *testing.T) {
		hotel := at("hotel", 35.0, 135.00)
		assert.Equal(t, Fitness{}, Evaluate(nil, Anchors{Hotel: &hotel}))
	})
}

func newTestOptimizer(seed uint64) *Optimizer {
	return New(Config{Seed: seed})
}

func TestOptimize_FindsShortestLine(t *testing.T) {
	acts := line(7)
	res, err := newTestOptimizer(42).Optimize(context.Background(), acts, Anchors{})
	require.NoError(t, err)

	require.Len(t, res.Route, 7)
	assert.InDelta(t, lineLength(7), res.TotalDistanceKm, 1e-3)
	assert.InDelta(t, res.TotalDistanceKm*MinutesPerKm, res.TotalTimeMinutes, 1e-9)

	got := ids(res.Route)
	asc := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6"}
	desc := []string{"p6", "p5", "p4", "p3", "p2", "p1", "p0"}
	assert.True(t, assert.ObjectsAreEqual(asc, got) || assert.ObjectsAreEqual(desc, got), "route %v", got)

	assert.Len(t, res.Generations, DefaultParams().Generations)
	assert.GreaterOrEqual(t, res.Improvement, 0.0)
	assert.False(t, res.Interrupted)
}

func TestOptimize_PreservesActivitySet(t *testing.T) {
	acts := line(9)
	res, err := newTestOptimizer(3).Optimize(context.Background(), acts, Anchors{})
	require.NoError(t, err)

	assert.ElementsMatch(t, ids(acts), ids(res.Route))
}

func TestOptimize_HotelPicksDirection(t *testing.T) {
	acts := line(6)
	hotel := at("hotel", 35.0, 134.99)

	res, err := newTestOptimizer(5).Optimize(context.Background(), acts, Anchors{Hotel: &hotel})
	require.NoError(t, err)

	// Ending next to the hotel is cheaper, so the walk runs east to west.
	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1", "p0"}, ids(res.Route))
}

func TestOptimize_Anchors(t *testing.T) {
	start := at("station", 35.0, 134.95)
	end := at("dinner", 35.0, 135.10)
	acts := append([]itinerary.Activity{end}, line(5)...)
	acts = append(acts, start)

	res, err := newTestOptimizer(9).Optimize(context.Background(), acts, Anchors{FixedStart: &start, FixedEnd: &end})
	require.NoError(t, err)

	require.Len(t, res.Route, 7)
	assert.Equal(t, "station", res.Route[0].ID)
	assert.Equal(t, "dinner", res.Route[6].ID)
	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4"}, ids(res.Route[1:6]))
}

func TestOptimize_OnlyAnchors(t *testing.T) {
	start := at("station", 35.0, 134.95)
	end := at("dinner", 35.0, 135.10)

	res, err := newTestOptimizer(1).Optimize(context.Background(), nil, Anchors{FixedStart: &start, FixedEnd: &end})
	require.NoError(t, err)

	assert.Equal(t, []string{"station", "dinner"}, ids(res.Route))
	assert.Zero(t, res.TotalDistanceKm)
	assert.Zero(t, res.TotalTimeMinutes)
	assert.Empty(t, res.Generations)
	assert.Zero(t, res.Improvement)

	res, err = newTestOptimizer(1).Optimize(context.Background(), nil, Anchors{})
	require.NoError(t, err)
	assert.Empty(t, res.Route)
}

func TestOptimize_SingleActivity(t *testing.T) {
	res, err := newTestOptimizer(1).Optimize(context.Background(), []itinerary.Activity{at("a", 35, 135)}, Anchors{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(res.Route))
	assert.Zero(t, res.TotalDistanceKm)
	assert.Zero(t, res.Improvement)
}

func TestOptimize_BestCostNeverIncreases(t *testing.T) {
	res, err := newTestOptimizer(11).Optimize(context.Background(), line(10), Anchors{})
	require.NoError(t, err)

	for i := 1; i < len(res.Generations); i++ {
		assert.LessOrEqual(t, res.Generations[i].BestCost, res.Generations[i-1].BestCost, "generation %d", i)
		assert.GreaterOrEqual(t, res.Generations[i].AvgCost, res.Generations[i].BestCost)
	}
	assert.GreaterOrEqual(t, res.Improvement, 0.0)

	last := res.Generations[len(res.Generations)-1]
	assert.LessOrEqual(t, Evaluate(res.Route, Anchors{}).TotalCost, last.BestCost+1e-9)
}

func TestOptimize_Deterministic(t *testing.T) {
	acts := line(8)

	r1, err := New(Config{Seed: 99}).Optimize(context.Background(), acts, Anchors{})
	require.NoError(t, err)
	r2, err := New(Config{Seed: 99, Workers: 4}).Optimize(context.Background(), acts, Anchors{})
	require.NoError(t, err)

	assert.Equal(t, ids(r1.Route), ids(r2.Route))
	assert.Equal(t, r1.Generations, r2.Generations)
}

func TestOptimize_CustomParams(t *testing.T) {
	o := newTestOptimizer(2).WithParams(Params{PopulationSize: 10, Generations: 3})
	assert.Equal(t, 10, o.Params().PopulationSize)
	assert.Equal(t, 0.15, o.Params().MutationRate)

	res, err := o.Optimize(context.Background(), line(4), Anchors{})
	require.NoError(t, err)
	assert.Len(t, res.Generations, 3)
}

func TestParams_Rates(t *testing.T) {
	tests := []struct {
		name          string
		mutation      float64
		crossover     float64
		wantMutation  float64
		wantCrossover float64
	}{
		{"zero selects defaults", 0, 0, 0.15, 0.7},
		{"explicit rates kept", 0.3, 0.9, 0.3, 0.9},
		{"out of range selects defaults", 1.5, 2, 0.15, 0.7},
		{"operators off", RateOff, RateOff, RateOff, RateOff},
		{"any negative is off", -0.2, 0.5, RateOff, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Config{Params: Params{MutationRate: tt.mutation, CrossoverRate: tt.crossover}}).Params()
			assert.Equal(t, tt.wantMutation, p.MutationRate)
			assert.Equal(t, tt.wantCrossover, p.CrossoverRate)

			again := New(Config{}).WithParams(p).Params()
			assert.Equal(t, p, again)
		})
	}
}

func TestOptimize_OperatorsOff(t *testing.T) {
	acts := line(6)
	o := New(Config{Seed: 7, Params: Params{
		PopulationSize: 20,
		Generations:    5,
		MutationRate:   RateOff,
		CrossoverRate:  RateOff,
	}})

	res, err := o.Optimize(context.Background(), acts, Anchors{})
	require.NoError(t, err)
	assert.Len(t, res.Generations, 5)
	assert.ElementsMatch(t, ids(acts), ids(res.Route))
	for i := 1; i < len(res.Generations); i++ {
		assert.LessOrEqual(t, res.Generations[i].BestCost, res.Generations[i-1].BestCost)
	}
}

func TestOptimize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acts := line(6)
	res, err := newTestOptimizer(4).Optimize(ctx, acts, Anchors{})
	require.NoError(t, err)

	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Generations)
	assert.ElementsMatch(t, ids(acts), ids(res.Route))
	assert.Zero(t, res.Improvement)
}

func TestOptimize_CancelledContextParallel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acts := line(6)
	res, err := New(Config{Seed: 3, Workers: 4}).Optimize(ctx, acts, Anchors{})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Interrupted)
	assert.ElementsMatch(t, ids(acts), ids(res.Route))
	assert.Positive(t, res.TotalDistanceKm)
}

func TestOptimize_InvalidCoordinates(t *testing.T) {
	acts := []itinerary.Activity{at("a", 35, 135), at("bad", 123, 135)}
	_, err := newTestOptimizer(1).Optimize(context.Background(), acts, Anchors{})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	hotel := at("hotel", 0, 200)
	_, err = newTestOptimizer(1).Optimize(context.Background(), acts[:1], Anchors{Hotel: &hotel})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestOptimize_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	o := New(Config{Seed: 1, Tracer: tp.Tracer("test"), Params: Params{Generations: 2}})
	_, err := o.Optimize(context.Background(), line(4), Anchors{})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "optimizer.Optimize", spans[0].Name())

	attrs := map[string]bool{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = true
	}
	assert.True(t, attrs["optimizer.activities"])
	assert.True(t, attrs["optimizer.total_distance_km"])
}

func TestEvolutionData(t *testing.T) {
	res := &Result{
		Generations: []GenerationStats{
			{Generation: 0, BestCost: 10, AvgCost: 14},
			{Generation: 1, BestCost: 8, AvgCost: 11},
		},
		Improvement: 20,
	}

	data := res.EvolutionData()
	assert.Equal(t, []int{0, 1}, data.Generations)
	assert.Equal(t, []float64{10, 8}, data.BestFitness)
	assert.Equal(t, []float64{14, 11}, data.AvgFitness)
	assert.Equal(t, 20.0, data.Improvement)
}

func TestImprovement(t *testing.T) {
	assert.Zero(t, improvement(nil))
	assert.Zero(t, improvement([]GenerationStats{{BestCost: 5}}))
	assert.Zero(t, improvement([]GenerationStats{{BestCost: 0}, {BestCost: 0}}))
	assert.InDelta(t, 25.0, improvement([]GenerationStats{{BestCost: 8}, {BestCost: 7}, {BestCost: 6}}), 1e-9)
}
