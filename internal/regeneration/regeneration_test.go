package regeneration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/storage"
)

var fixedNow = time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)

func testTrip() *itinerary.Trip {
	return &itinerary.Trip{
		ID:          "trip-1",
		Preferences: itinerary.Preferences{Interests: []string{"food", "anime"}},
		Hotel:       &itinerary.Activity{ID: "hotel", Name: "Hotel"},
		Days: []itinerary.Day{
			{DayNumber: 1, City: "Tokyo", Activities: []itinerary.Activity{
				{ID: "a", Name: "Senso-ji", Category: "temple", Duration: 90, Cost: 0},
				{ID: "b", Name: "Tsukiji", Category: "market", Duration: 120, Cost: 3000},
			}},
			{DayNumber: 2, City: "Kyoto"},
		},
	}
}

func newTestRegenerator(gen Generator) *Regenerator {
	return New(Config{Generator: gen, Now: func() time.Time { return fixedNow }})
}

func TestCatalog(t *testing.T) {
	options := Catalog()
	require.Len(t, options, 8)

	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{
		"more-cultural", "more-economical", "less-walking", "more-food",
		"more-nature", "more-modern", "more-relaxed", "more-active",
	}, ids)

	options[0].Adjustments.CategoryWeights["temple"] = 99
	again, err := LookupOption("more-cultural")
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.Adjustments.CategoryWeights["temple"])
}

func TestLookupOption(t *testing.T) {
	o, err := LookupOption("more_food")
	require.NoError(t, err)
	assert.Equal(t, "more-food", o.ID)
	assert.Equal(t, 0.5, o.Adjustments.MealRatio)

	_, err = LookupOption("more-karaoke")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestOptionApply(t *testing.T) {
	base := itinerary.GenerationContext{
		City:      "Tokyo",
		Interests: []string{"food", "anime"},
		Budget:    "high",
	}

	t.Run("interests are unioned", func(t *testing.T) {
		o, _ := LookupOption("more-food")
		gc := o.Apply(base)
		assert.Equal(t, []string{"food", "anime", "culinary"}, gc.Interests)
		assert.Equal(t, 2.0, gc.CategoryWeights["market"])
		assert.Equal(t, "more-food", gc.RegenerationOption)
		assert.Equal(t, "high", gc.Budget)
	})

	t.Run("budget override", func(t *testing.T) {
		o, _ := LookupOption("more-economical")
		gc := o.Apply(base)
		assert.Equal(t, "low", gc.Budget)
		assert.Equal(t, 1000.0, gc.MaxActivityCost)
	})

	t.Run("pace adjustments", func(t *testing.T) {
		o, _ := LookupOption("more-relaxed")
		gc := o.Apply(base)
		assert.Equal(t, 4, gc.ActivitiesPerDay)
		assert.Equal(t, 1.5, gc.RestTimeMultiplier)
	})

	t.Run("walking adjustments", func(t *testing.T) {
		o, _ := LookupOption("less-walking")
		gc := o.Apply(base)
		assert.True(t, gc.PrioritizeNearby)
		assert.Equal(t, 5.0, gc.MaxWalkingDistanceKm)
	})
}

func TestPlaceholderGenerator(t *testing.T) {
	acts, err := PlaceholderGenerator{}.GenerateActivitiesForDay(context.Background(), itinerary.GenerationContext{City: "Nara"})
	require.NoError(t, err)
	require.Len(t, acts, 5)

	seen := map[string]bool{}
	for _, a := range acts {
		assert.Equal(t, "general", a.Category)
		assert.Equal(t, 90, a.Duration)
		assert.Equal(t, 1500.0, a.Cost)
		assert.Equal(t, "Nara", a.City)
		assert.True(t, a.Regenerated)
		assert.False(t, seen[a.ID])
		seen[a.ID] = true
	}

	acts, err = PlaceholderGenerator{}.GenerateActivitiesForDay(context.Background(), itinerary.GenerationContext{ActivitiesPerDay: 8})
	require.NoError(t, err)
	assert.Len(t, acts, 8)
}

func TestRegenerateDay_Placeholder(t *testing.T) {
	trip := testTrip()
	r := newTestRegenerator(nil)

	day, err := r.RegenerateDay(context.Background(), trip, 0, "more-relaxed", nil)
	require.NoError(t, err)

	assert.Len(t, day.Activities, 4)
	assert.True(t, day.Regenerated)
	assert.Equal(t, "more-relaxed", day.RegeneratedWith)
	require.NotNil(t, day.RegeneratedAt)
	assert.Equal(t, fixedNow, *day.RegeneratedAt)
	assert.Equal(t, []string{"a", "b"}, []string{day.OriginalActivities[0].ID, day.OriginalActivities[1].ID})
	assert.Equal(t, "Tokyo", day.City)
	assert.Equal(t, 1, day.DayNumber)

	require.NotNil(t, day.Metrics)
	assert.Equal(t, 4, day.Metrics.TotalActivities)
	assert.Equal(t, 360, day.Metrics.TotalDuration)
	assert.Equal(t, 6000.0, day.Metrics.TotalCost)

	// The trip itself is left untouched.
	assert.Equal(t, "a", trip.Days[0].Activities[0].ID)
	assert.False(t, trip.Days[0].Regenerated)
}

func TestRegenerateDay_UsesGenerator(t *testing.T) {
	var got itinerary.GenerationContext
	gen := GeneratorFunc(func(_ context.Context, gc itinerary.GenerationContext) ([]itinerary.Activity, error) {
		got = gc
		return []itinerary.Activity{{ID: "ramen", Name: "Ichiran", Category: "restaurant", Cost: 1200}}, nil
	})

	day, err := newTestRegenerator(nil).RegenerateDay(context.Background(), testTrip(), 0, "more_food", gen)
	require.NoError(t, err)

	require.Len(t, day.Activities, 1)
	assert.Equal(t, "ramen", day.Activities[0].ID)
	assert.Equal(t, "more-food", day.RegeneratedWith)

	assert.Equal(t, "Tokyo", got.City)
	assert.Equal(t, 1, got.DayNumber)
	assert.Equal(t, 2, got.TripDuration)
	assert.Equal(t, []string{"food", "anime", "culinary"}, got.Interests)
	assert.Equal(t, "moderate", got.Budget)
	assert.Equal(t, "balanced", got.TravelStyle)
	require.NotNil(t, got.Hotel)
	assert.Equal(t, "hotel", got.Hotel.ID)
}

func TestRegenerateDay_ConfiguredGenerator(t *testing.T) {
	calls := 0
	gen := GeneratorFunc(func(context.Context, itinerary.GenerationContext) ([]itinerary.Activity, error) {
		calls++
		return nil, nil
	})

	_, err := newTestRegenerator(gen).RegenerateDay(context.Background(), testTrip(), 1, "more-nature", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRegenerateDay_Errors(t *testing.T) {
	r := newTestRegenerator(nil)

	_, err := r.RegenerateDay(context.Background(), testTrip(), 0, "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = r.RegenerateDay(context.Background(), testTrip(), 7, "more-food", nil)
	assert.ErrorIs(t, err, itinerary.ErrDayNotFound)

	failing := GeneratorFunc(func(context.Context, itinerary.GenerationContext) ([]itinerary.Activity, error) {
		return nil, errors.New("upstream timeout")
	})
	_, err = r.RegenerateDay(context.Background(), testTrip(), 0, "more-food", failing)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestCompareDay(t *testing.T) {
	original := testTrip().Days[0]
	regenerated := itinerary.Day{Activities: []itinerary.Activity{
		{ID: "x", Category: "park", Duration: 60, Cost: 0},
		{ID: "y", Category: "park", Cost: 500},
		{ID: "z", Category: "temple", Duration: 30, Cost: 1000},
	}}

	c := CompareDay(original, regenerated)

	assert.Equal(t, IntChange{Before: 2, After: 3, Change: 1}, c.Activities)
	assert.Equal(t, 3000.0, c.Cost.Before)
	assert.Equal(t, 1500.0, c.Cost.After)
	assert.Equal(t, -1500.0, c.Cost.Change)
	assert.Equal(t, -50.0, c.Cost.PercentChange)
	assert.Equal(t, IntChange{Before: 210, After: 150, Change: -60}, c.Duration)
	assert.Equal(t, map[string]int{"temple": 1, "market": 1}, c.Categories.Before)
	assert.Equal(t, map[string]int{"park": 2, "temple": 1}, c.Categories.After)
}

func TestCompareDay_Identical(t *testing.T) {
	day := testTrip().Days[0]
	c := CompareDay(day, day)

	assert.Zero(t, c.Activities.Change)
	assert.Zero(t, c.Cost.Change)
	assert.Zero(t, c.Cost.PercentChange)
	assert.Zero(t, c.Duration.Change)
	assert.Equal(t, c.Categories.Before, c.Categories.After)
}

func TestCompareDay_ZeroCostBaseline(t *testing.T) {
	c := CompareDay(itinerary.Day{}, itinerary.Day{Activities: []itinerary.Activity{{ID: "a", Cost: 100}}})
	assert.Equal(t, 100.0, c.Cost.Change)
	assert.Zero(t, c.Cost.PercentChange)
}

func TestPercentChangeRounding(t *testing.T) {
	assert.Equal(t, 33.3, percentChange(3, 4))
	assert.Equal(t, -66.7, percentChange(3, 1))
}

func TestHistoryStore(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(storage.NewMemoryStore())
	h.now = func() time.Time { return fixedNow }

	stats, err := h.Stats(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	require.NoError(t, h.Append(ctx, "trip-1", 0, "more-food", nil))
	require.NoError(t, h.Append(ctx, "trip-1", 1, "more-nature", nil))
	require.NoError(t, h.Append(ctx, "trip-1", 2, "more-nature", &Comparison{Activities: IntChange{Change: 1}}))
	require.NoError(t, h.Append(ctx, "trip-2", 0, "less-walking", nil))

	stats, err = h.Stats(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRegenerations)
	assert.Equal(t, "more-nature", stats.FavoriteOption)
	assert.Equal(t, map[string]int{"more-food": 1, "more-nature": 2}, stats.OptionCounts)
	require.NotNil(t, stats.LastRegeneration)
	assert.Equal(t, 2, stats.LastRegeneration.DayIndex)
	require.NotNil(t, stats.LastRegeneration.Comparison)
	assert.Equal(t, 1, stats.LastRegeneration.Comparison.Activities.Change)
	assert.Equal(t, fixedNow, stats.LastRegeneration.Timestamp)
}

func TestHistoryStore_FavoriteTieGoesToFirstUsed(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(storage.NewMemoryStore())

	require.NoError(t, h.Append(ctx, "t", 0, "more-modern", nil))
	require.NoError(t, h.Append(ctx, "t", 0, "more-food", nil))

	stats, err := h.Stats(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "more-modern", stats.FavoriteOption)
}

func TestHistoryStore_Capped(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(storage.NewMemoryStore())

	for i := 0; i < MaxHistoryEntries+5; i++ {
		require.NoError(t, h.Append(ctx, "t", i, "more-food", nil))
	}

	entries, err := h.List(ctx, "t")
	require.NoError(t, err)
	require.Len(t, entries, MaxHistoryEntries)
	assert.Equal(t, 5, entries[0].DayIndex)
	assert.Equal(t, MaxHistoryEntries+4, entries[len(entries)-1].DayIndex)
}
