package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viajejapon/planner/internal/featureflags"
	"github.com/viajejapon/planner/internal/geo"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/optimizer"
	"github.com/viajejapon/planner/internal/preference"
	"github.com/viajejapon/planner/internal/regeneration"
	"github.com/viajejapon/planner/internal/storage"
)

var now = time.Date(2025, 4, 3, 12, 0, 0, 0, time.UTC)

type fakeFlags struct {
	noOptimize bool
	noRules    bool
	noScoring  bool
}

func (f fakeFlags) IsRouteOptimizationDisabled(context.Context) bool { return f.noOptimize }
func (f fakeFlags) IsExpertRulesDisabled(context.Context) bool { return f.noRules }
func (f fakeFlags) IsPreferenceScoringDisabled(context.Context) bool { return f.noScoring }
func (f fakeFlags) OptimizerPopulationSize(context.Context) int { return 50 }
func (f fakeFlags) OptimizerGenerations(context.Context) int { return 30 }

type fixture struct {
	svc     *Service
	prefs   *preference.Service
	history *regeneration.HistoryStore
}

func newFixture(t *testing.T, flags Flags) fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	prefs := preference.NewService(preference.ServiceConfig{Store: store, Now: func() time.Time { return now }})
	history := regeneration.NewHistoryStore(store)

	svc := NewService(ServiceConfig{
		Preferences: prefs,
		Optimizer:   optimizer.New(optimizer.Config{Seed: 42, Logger: zerolog.Nop()}),
		Regenerator: regeneration.New(regeneration.Config{Logger: zerolog.Nop(), Now: func() time.Time { return now }}),
		History:     history,
		Flags:       flags,
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return now },
	})
	return fixture{svc: svc, prefs: prefs, history: history}
}

func intPtr(v int) *int { return &v }

func TestEnhanceGenerationContext(t *testing.T) {
	f := newFixture(t, fakeFlags{})

	gc := itinerary.GenerationContext{
		City:                 "Tokyo",
		Interests:            []string{"food"},
		Weather:              &itinerary.Weather{RainChance: 90},
		TripsToJapan:         intPtr(0),
		PrioritizeCategories: []string{"onsen"},
		AvoidCategories:      []string{"bars"},
		MustInclude:          []itinerary.MustInclude{{Name: "Senso-ji", City: "Tokyo"}},
	}

	out, err := f.svc.EnhanceGenerationContext(context.Background(), "user-1", gc)
	require.NoError(t, err)

	assert.Equal(t, "Tokyo", out.City)
	assert.Equal(t, []string{"rainy_day", "first_time_japan", "foodie_traveler"}, out.AppliedRules)
	assert.Equal(t, "onsen", out.PrioritizeCategories[0])
	assert.Contains(t, out.PrioritizeCategories, "museum")
	assert.Contains(t, out.PrioritizeCategories, "tsukiji-market")
	assert.Equal(t, "bars", out.AvoidCategories[0])
	assert.Contains(t, out.AvoidCategories, "park")
	assert.Len(t, out.MustInclude, 4)
	assert.Len(t, out.Tips, 4)
	assert.Len(t, out.Messages, 3)
	assert.Equal(t, true, out.ExpertAdjustments["addUmbrellaTip"])
	assert.False(t, out.Insights.CanPredict)

	assert.Equal(t, []string{"onsen"}, gc.PrioritizeCategories, "input context is not modified")
}

func TestEnhanceGenerationContext_RulesDisabled(t *testing.T) {
	f := newFixture(t, fakeFlags{noRules: true})

	out, err := f.svc.EnhanceGenerationContext(context.Background(), "user-1", itinerary.GenerationContext{
		Weather:              &itinerary.Weather{RainChance: 90},
		PrioritizeCategories: []string{"onsen"},
	})
	require.NoError(t, err)

	assert.Empty(t, out.AppliedRules)
	assert.Equal(t, []string{"onsen"}, out.PrioritizeCategories)
	assert.Empty(t, out.Tips)
}

func ids(scored []ScoredActivity) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.ID
	}
	return out
}

func TestScoreActivities_RuleMultipliers(t *testing.T) {
	f := newFixture(t, fakeFlags{})

	activities := []itinerary.Activity{
		{ID: "park", Category: "park"},
		{ID: "shop", Category: "shopping"},
		{ID: "museum", Category: "museum"},
		{ID: "both", Category: "garden"},
		{ID: "cafe", Category: "cafe"},
	}
	gc := itinerary.GenerationContext{
		PrioritizeCategories: []string{"museum", "garden"},
		AvoidCategories:      []string{"park", "garden"},
	}

	scored, err := f.svc.ScoreActivities(context.Background(), "user-1", activities, gc)
	require.NoError(t, err)

	assert.Equal(t, []string{"museum", "shop", "cafe", "both", "park"}, ids(scored))
	assert.InDelta(t, 0.75, scored[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.5, scored[0].MLScore, 1e-9)
	assert.InDelta(t, 0.375, scored[3].FinalScore, 1e-9)
	assert.InDelta(t, 0.25, scored[4].FinalScore, 1e-9)
	assert.Equal(t, preference.Neutral, scored[1].MLRecommendation)
}

func trainTemples(t *testing.T, f fixture) {
	t.Helper()
	temple := itinerary.Activity{Name: "Senso-ji", Category: "temple", Interests: []string{"culture"}}
	arcade := itinerary.Activity{Name: "Taito Station", Category: "arcade"}
	for _, e := range []preference.Event{
		{Type: preference.EventCompleted, Activity: temple},
		{Type: preference.EventCompleted, Activity: temple},
		{Type: preference.EventRated, Activity: temple, Rating: 5},
		{Type: preference.EventSkipped, Activity: arcade},
		{Type: preference.EventRemoved, Activity: arcade},
	} {
		_, err := f.svc.TrackAction(context.Background(), "user-1", e)
		require.NoError(t, err)
	}
}

func TestScoreActivities_LearnedPreferences(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	trainTemples(t, f)

	scored, err := f.svc.ScoreActivities(context.Background(), "user-1", []itinerary.Activity{
		{ID: "arcade", Category: "arcade"},
		{ID: "temple", Category: "temple", Interests: []string{"culture"}},
	}, itinerary.GenerationContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"temple", "arcade"}, ids(scored))
	assert.Greater(t, scored[0].MLScore, 0.9)
	assert.Equal(t, preference.HighlyRecommended, scored[0].MLRecommendation)
	assert.Less(t, scored[1].MLScore, 0.5)
}

func TestScoreActivities_ScoringDisabled(t *testing.T) {
	f := newFixture(t, fakeFlags{noScoring: true})
	trainTemples(t, f)

	scored, err := f.svc.ScoreActivities(context.Background(), "user-1", []itinerary.Activity{
		{ID: "arcade", Category: "arcade"},
		{ID: "temple", Category: "temple"},
	}, itinerary.GenerationContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"arcade", "temple"}, ids(scored))
	for _, s := range scored {
		assert.Equal(t, 0.5, s.MLScore)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	trainTemples(t, f)

	stats, err := f.svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalActions)
	assert.True(t, stats.Predictor.CanPredict)
	require.NotEmpty(t, stats.TopCategories)
	assert.Equal(t, "temple", stats.TopCategories[0].Label)
	assert.Equal(t, "culture", stats.TopInterests[0].Label)
}

func TestResetPreferences(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	trainTemples(t, f)

	require.NoError(t, f.svc.ResetPreferences(context.Background(), "user-1"))

	stats, err := f.svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalActions)
	assert.False(t, stats.Predictor.CanPredict)
}

func TestTrackAction_InvalidEvent(t *testing.T) {
	f := newFixture(t, fakeFlags{})

	_, err := f.svc.TrackAction(context.Background(), "user-1", preference.Event{Type: preference.EventRated, Rating: 9})
	assert.ErrorIs(t, err, preference.ErrInvalidRating)
}

// scrambledLine places n stops 1 km apart on a meridian and lists them in an
// order that zigzags across the whole line.
func scrambledLine(n int) []itinerary.Activity {
	const kmPerDegree = 111.195
	order := make([]int, 0, n)
	for lo, hi := 0, n-1; lo <= hi; lo, hi = lo+1, hi-1 {
		order = append(order, lo)
		if lo != hi {
			order = append(order, hi)
		}
	}
	out := make([]itinerary.Activity, n)
	for i, idx := range order {
		out[i] = itinerary.Activity{
			ID:          fmt.Sprintf("stop-%d", idx),
			Name:        fmt.Sprintf("Stop %d", idx),
			Coordinates: &geo.Point{Lat: 35 + float64(idx)/kmPerDegree, Lng: 139.7},
		}
	}
	return out
}

func activityIDs(activities []itinerary.Activity) []string {
	out := make([]string, len(activities))
	for i, a := range activities {
		out[i] = a.ID
	}
	return out
}

func TestOptimizeRoutes(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	day := itinerary.Day{DayNumber: 2, Activities: scrambledLine(6)}
	before := optimizer.Evaluate(day.Activities, optimizer.Anchors{})

	out := f.svc.OptimizeRoutes(context.Background(), day, OptimizeOptions{})

	require.NotNil(t, out.Optimization)
	assert.True(t, out.Optimization.Applied)
	assert.Equal(t, MethodGeneticAlgorithm, out.Optimization.Method)
	assert.Equal(t, now, out.Optimization.OptimizedAt)
	assert.Less(t, out.Optimization.TotalDistanceKm, before.TotalDistanceKm)
	assert.InDelta(t, out.Optimization.TotalDistanceKm*optimizer.MinutesPerKm, out.Optimization.TotalTimeMinutes, 1e-9)
	assert.ElementsMatch(t, activityIDs(day.Activities), activityIDs(out.Activities))
	require.NotNil(t, out.Optimization.Bounds)
	assert.InDelta(t, 35, out.Optimization.Bounds.South, 1e-6)
	assert.Nil(t, day.Optimization, "input day is not modified")
}

func TestOptimizeRoutes_TooFewActivities(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	day := itinerary.Day{DayNumber: 1, Activities: scrambledLine(2)}

	out := f.svc.OptimizeRoutes(context.Background(), day, OptimizeOptions{})
	assert.Equal(t, day, out)
	assert.Nil(t, out.Optimization)
}

func TestOptimizeRoutes_Disabled(t *testing.T) {
	f := newFixture(t, fakeFlags{noOptimize: true})
	day := itinerary.Day{Activities: scrambledLine(5)}

	out := f.svc.OptimizeRoutes(context.Background(), day, OptimizeOptions{})
	assert.Equal(t, activityIDs(day.Activities), activityIDs(out.Activities))
	require.NotNil(t, out.Optimization)
	assert.False(t, out.Optimization.Applied)
	assert.True(t, out.Optimization.Skipped)
	assert.Equal(t, ReasonDisabled, out.Optimization.Reason)
}

func TestOptimizeRoutes_FailureKeepsDay(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	day := itinerary.Day{Activities: scrambledLine(4)}
	day.Activities[1].Coordinates = &geo.Point{Lat: 200, Lng: 0}

	out := f.svc.OptimizeRoutes(context.Background(), day, OptimizeOptions{})
	assert.Equal(t, day, out)
}

func TestOptimizeRoutes_RecoversFromPanic(t *testing.T) {
	svc := NewService(ServiceConfig{Flags: fakeFlags{}, Logger: zerolog.Nop()})
	day := itinerary.Day{Activities: scrambledLine(4)}

	var out itinerary.Day
	require.NotPanics(t, func() {
		out = svc.OptimizeRoutes(context.Background(), day, OptimizeOptions{})
	})
	assert.Equal(t, day, out)
}

func TestOptimizeRoutes_UsesDayAnchors(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	stops := scrambledLine(5)
	start := stops[0]
	day := itinerary.Day{Activities: stops, FixedStart: &start}

	out := f.svc.OptimizeRoutes(context.Background(), day, OptimizeOptions{})
	require.Len(t, out.Activities, 5)
	assert.Equal(t, start.ID, out.Activities[0].ID)
}

func TestOptimizeRoutes_RecomputesMetricsForAnchoredRoute(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	stops := scrambledLine(4)
	for i := range stops {
		stops[i].Cost = 100
	}
	station := itinerary.Activity{ID: "station", Name: "Station", Cost: 500, Coordinates: &geo.Point{Lat: 35, Lng: 139.69}}
	day := itinerary.Day{Activities: stops, FixedStart: &station}
	stale := itinerary.ComputeMetrics(day)
	day.Metrics = &stale

	out := f.svc.OptimizeRoutes(context.Background(), day, OptimizeOptions{})

	require.Len(t, out.Activities, 5)
	assert.Equal(t, "station", out.Activities[0].ID)
	require.NotNil(t, out.Metrics)
	assert.Equal(t, len(out.Activities), out.Metrics.TotalActivities)
	assert.Equal(t, itinerary.ComputeMetrics(out).TotalCost, out.Metrics.TotalCost)
	assert.Equal(t, 4, day.Metrics.TotalActivities, "input day is not modified")
}

func testTrip() *itinerary.Trip {
	return &itinerary.Trip{
		ID:          "trip-1",
		StartDate:   "2025-04-01",
		Preferences: itinerary.Preferences{Interests: []string{"culture"}},
		Hotel:       &itinerary.Activity{ID: "hotel", Name: "Hotel", Coordinates: &geo.Point{Lat: 35.68, Lng: 139.76}},
		Days: []itinerary.Day{
			{DayNumber: 1, City: "Tokyo", Activities: scrambledLine(3)},
			{DayNumber: 2, City: "Tokyo", Activities: []itinerary.Activity{
				{ID: "a", Category: "temple", Cost: 500, Duration: 60},
				{ID: "b", Category: "museum", Cost: 1000, Duration: 90},
			}},
		},
	}
}

func TestRegenerateDay(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	ctx := context.Background()
	trip := testTrip()

	out, err := f.svc.RegenerateDay(ctx, trip, 1, "more_relaxed", nil)
	require.NoError(t, err)

	assert.True(t, out.Day.Regenerated)
	assert.Equal(t, "more-relaxed", out.Day.RegeneratedWith)
	assert.Len(t, out.Day.Activities, 4)
	assert.Len(t, out.Day.OriginalActivities, 2)
	require.NotNil(t, out.Day.Optimization)
	assert.True(t, out.Day.Optimization.Applied)

	assert.Equal(t, 2, out.Comparison.Activities.Before)
	assert.Equal(t, 4, out.Comparison.Activities.After)
	assert.Equal(t, 1500.0, out.Comparison.Cost.Before)
	assert.Equal(t, 6000.0, out.Comparison.Cost.After)
	assert.Equal(t, 300.0, out.Comparison.Cost.PercentChange)

	assert.Len(t, trip.Days[1].Activities, 2, "trip is not modified")

	stats, err := f.svc.RegenerationStats(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRegenerations)
	assert.Equal(t, "more-relaxed", stats.FavoriteOption)
	require.NotNil(t, stats.LastRegeneration)
	require.NotNil(t, stats.LastRegeneration.Comparison)
	assert.Equal(t, 4, stats.LastRegeneration.Comparison.Activities.After)
}

func TestRegenerateDay_CustomGenerator(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	var seen itinerary.GenerationContext
	gen := regeneration.GeneratorFunc(func(_ context.Context, gc itinerary.GenerationContext) ([]itinerary.Activity, error) {
		seen = gc
		return []itinerary.Activity{{ID: "x", Category: "park"}}, nil
	})

	out, err := f.svc.RegenerateDay(context.Background(), testTrip(), 0, "more-nature", gen)
	require.NoError(t, err)

	assert.Equal(t, "Tokyo", seen.City)
	assert.Contains(t, seen.Interests, "culture")
	assert.Contains(t, seen.Interests, "nature")
	assert.Equal(t, []string{"x"}, activityIDs(out.Day.Activities))
	assert.Nil(t, out.Day.Optimization, "single activity is not optimized")
}

func TestRegenerateDay_Errors(t *testing.T) {
	f := newFixture(t, fakeFlags{})
	ctx := context.Background()

	_, err := f.svc.RegenerateDay(ctx, testTrip(), 0, "not-a-real-option", nil)
	assert.ErrorIs(t, err, regeneration.ErrUnknownOption)

	_, err = f.svc.RegenerateDay(ctx, testTrip(), 7, "more-food", nil)
	assert.ErrorIs(t, err, itinerary.ErrDayNotFound)

	failing := regeneration.GeneratorFunc(func(context.Context, itinerary.GenerationContext) ([]itinerary.Activity, error) {
		return nil, errors.New("upstream timeout")
	})
	_, err = f.svc.RegenerateDay(ctx, testTrip(), 0, "more-food", failing)
	assert.ErrorIs(t, err, regeneration.ErrGeneration)

	stats, err := f.svc.RegenerationStats(ctx, "trip-1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRegenerations)
}

type brokenStore struct{ storage.Store }

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, storage.ErrNotFound }
func (brokenStore) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestRegenerateDay_HistoryFailureIsNotFatal(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(ServiceConfig{
		Preferences: preference.NewService(preference.ServiceConfig{Store: store}),
		Optimizer:   optimizer.New(optimizer.Config{Seed: 7, Logger: zerolog.Nop()}),
		Regenerator: regeneration.New(regeneration.Config{Logger: zerolog.Nop()}),
		History:     regeneration.NewHistoryStore(brokenStore{}),
		Flags:       fakeFlags{},
		Logger:      zerolog.Nop(),
	})

	out, err := svc.RegenerateDay(context.Background(), testTrip(), 1, "more-food", nil)
	require.NoError(t, err)
	assert.True(t, out.Day.Regenerated)
}

func TestRegenerationStats_WithoutHistory(t *testing.T) {
	svc := NewService(ServiceConfig{Flags: fakeFlags{}, Logger: zerolog.Nop()})

	stats, err := svc.RegenerationStats(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRegenerations)
}

func TestReviewTrip(t *testing.T) {
	f := newFixture(t, fakeFlags{})

	out := f.svc.ReviewTrip(testTrip(), itinerary.GenerationContext{TripsToJapan: intPtr(0)})
	assert.Len(t, out.CriticalIssues, 4)
	assert.NotEmpty(t, out.Optimizations)
}

func TestNewService_DefaultFlags(t *testing.T) {
	f := newFixture(t, nil)

	out := f.svc.OptimizeRoutes(context.Background(), itinerary.Day{Activities: scrambledLine(4)}, OptimizeOptions{})
	require.NotNil(t, out.Optimization)
	assert.True(t, out.Optimization.Applied)

	_, ok := f.svc.flags.(*featureflags.Service)
	assert.True(t, ok)
}
