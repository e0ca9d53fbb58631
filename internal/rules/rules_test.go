package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viajejapon/planner/internal/itinerary"
)

func intPtr(v int) *int { return &v }

func TestEvaluate_NoRules(t *testing.T) {
	e := NewEngine(Config{})

	eval := e.Evaluate(itinerary.GenerationContext{City: "Tokyo"})
	assert.Zero(t, eval.RuleCount)
	assert.Empty(t, eval.ApplicableRules)
	assert.NotNil(t, eval.Decisions.Prioritize)
	assert.NotNil(t, eval.Decisions.Adjustments)
}

func TestEvaluate_OrdersByPriority(t *testing.T) {
	e := NewEngine(Config{})

	eval := e.Evaluate(itinerary.GenerationContext{
		Interests:    []string{"food", "culture"},
		Weather:      &itinerary.Weather{RainChance: 90},
		TripsToJapan: intPtr(0),
		NightOwl:     true,
	})

	assert.Equal(t, []string{"rainy_day", "first_time_japan", "culture_enthusiast", "foodie_traveler", "night_owl"}, eval.ApplicableRules)
	assert.Equal(t, 5, eval.RuleCount)
	assert.Len(t, eval.Decisions.Messages, 5)
	assert.Len(t, eval.Decisions.MustInclude, 4)
	assert.Len(t, eval.Decisions.Tips, 4)

	// "museum" is prioritized by both the rain and culture rules.
	count := 0
	for _, c := range eval.Decisions.Prioritize {
		if c == "museum" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "museum", eval.Decisions.Prioritize[0])
	assert.Contains(t, eval.Decisions.Avoid, "park")
	assert.Equal(t, 0.4, eval.Decisions.Adjustments["mealActivityRatio"])
}

func TestEvaluate_Conditions(t *testing.T) {
	e := NewEngine(Config{})

	tests := []struct {
		name string
		gc   itinerary.GenerationContext
		want string
	}{
		{"hot", itinerary.GenerationContext{Weather: &itinerary.Weather{Temperature: 35}}, "hot_day"},
		{"kids", itinerary.GenerationContext{Travelers: []itinerary.Traveler{{Age: 40}, {Age: 7}}}, "traveling_with_kids"},
		{"low budget", itinerary.GenerationContext{DailyBudget: 5000}, "low_budget"},
		{"high budget", itinerary.GenerationContext{DailyBudget: 30000}, "high_budget"},
		{"frequent", itinerary.GenerationContext{TripsToJapan: intPtr(4)}, "frequent_visitor"},
		{"sakura", itinerary.GenerationContext{StartDate: "2025-04-01"}, "cherry_blossom_season"},
		{"momiji", itinerary.GenerationContext{StartDate: "2025-11-15T09:00:00Z"}, "autumn_foliage"},
		{"active", itinerary.GenerationContext{ActivityLevel: "high"}, "active_traveler"},
		{"relaxed", itinerary.GenerationContext{ActivityLevel: "low"}, "relaxed_traveler"},
		{"history", itinerary.GenerationContext{Interests: []string{"history"}}, "culture_enthusiast"},
		{"anime", itinerary.GenerationContext{Interests: []string{"anime"}}, "tech_anime_fan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{tt.want}, e.Evaluate(tt.gc).ApplicableRules)
		})
	}
}

func TestEvaluate_UnsetFieldsDoNotFire(t *testing.T) {
	e := NewEngine(Config{})

	eval := e.Evaluate(itinerary.GenerationContext{
		StartDate: "not a date",
		Travelers: []itinerary.Traveler{{Name: "unknown age"}},
	})
	assert.Empty(t, eval.ApplicableRules)
}

func TestEvaluate_LaterAdjustmentsWin(t *testing.T) {
	e := NewEngine(Config{Rules: []Rule{
		{ID: "low", Priority: 1, Condition: func(*itinerary.GenerationContext) bool { return true },
			Actions: Actions{Adjustments: map[string]any{"activitiesPerDay": 3}}},
		{ID: "high", Priority: 5, Condition: func(*itinerary.GenerationContext) bool { return true },
			Actions: Actions{Adjustments: map[string]any{"activitiesPerDay": 6}}},
	}})

	eval := e.Evaluate(itinerary.GenerationContext{})
	assert.Equal(t, []string{"high", "low"}, eval.ApplicableRules)
	assert.Equal(t, 3, eval.Decisions.Adjustments["activitiesPerDay"])
}

func TestEvaluate_PanickingRuleIsSkipped(t *testing.T) {
	e := NewEngine(Config{Rules: []Rule{
		{ID: "broken", Priority: 9, Condition: func(gc *itinerary.GenerationContext) bool { return gc.Weather.RainChance > 0 }},
		{ID: "fine", Priority: 1, Condition: func(*itinerary.GenerationContext) bool { return true }},
		{ID: "empty", Priority: 1},
	}})

	eval := e.Evaluate(itinerary.GenerationContext{})
	assert.Equal(t, []string{"fine"}, eval.ApplicableRules)
}

func TestEvaluate_DoesNotShareRuleSlices(t *testing.T) {
	e := NewEngine(Config{})
	gc := itinerary.GenerationContext{Weather: &itinerary.Weather{RainChance: 80}}

	first := e.Evaluate(gc)
	first.Decisions.Prioritize[0] = "mutated"
	first.Decisions.Adjustments["addUmbrellaTip"] = false

	second := e.Evaluate(gc)
	assert.Equal(t, "museum", second.Decisions.Prioritize[0])
	assert.Equal(t, true, second.Decisions.Adjustments["addUmbrellaTip"])
}

func act(name, category string) itinerary.Activity {
	return itinerary.Activity{Name: name, Category: category}
}

func TestCompatibility(t *testing.T) {
	assert.Equal(t, 0.95, Compatibility(act("a", "temple"), act("b", "tea-ceremony")))
	assert.Equal(t, 0.95, Compatibility(act("a", "tea-ceremony"), act("b", "temple")))
	assert.Equal(t, 0.4, Compatibility(act("a", "museum"), act("b", "museum")))
	assert.Equal(t, 0.5, Compatibility(act("a", "zoo"), act("b", "zoo")))
	assert.Equal(t, 0.6, Compatibility(act("a", "zoo"), act("b", "temple")))
}

func TestDayCompatibility(t *testing.T) {
	t.Run("short day", func(t *testing.T) {
		r := DayCompatibility([]itinerary.Activity{act("a", "temple")})
		assert.Equal(t, 1.0, r.Score)
		assert.Empty(t, r.Suggestions)
	})

	t.Run("excellent", func(t *testing.T) {
		r := DayCompatibility([]itinerary.Activity{
			act("Kiyomizu", "temple"), act("Tea house", "tea-ceremony"), act("Onsen", "onsen"),
		})
		assert.InDelta(t, 0.925, r.Score, 1e-9)
		assert.Equal(t, []string{"Excellent balance of activities for this day"}, r.Suggestions)
	})

	t.Run("poor", func(t *testing.T) {
		r := DayCompatibility([]itinerary.Activity{
			act("Golden Gai", "nightlife"), act("Sunrise", "early-morning"),
		})
		assert.InDelta(t, 0.1, r.Score, 1e-9)
		require.Len(t, r.Suggestions, 2)
		assert.Contains(t, r.Suggestions[0], `"Golden Gai" followed by "Sunrise"`)
	})

	t.Run("middling", func(t *testing.T) {
		r := DayCompatibility([]itinerary.Activity{act("a", "zoo"), act("b", "temple")})
		assert.Equal(t, 0.6, r.Score)
		assert.Empty(t, r.Suggestions)
	})
}

func TestSuggestImprovements(t *testing.T) {
	e := NewEngine(Config{})
	trip := &itinerary.Trip{Days: []itinerary.Day{
		{Activities: []itinerary.Activity{act("Senso-ji", "temple"), act("Shibuya Crossing", "landmark")}},
		{Activities: []itinerary.Activity{act("Golden Gai", "nightlife"), act("Tsukiji", "early-morning")}},
	}}

	out := e.SuggestImprovements(trip, itinerary.GenerationContext{TripsToJapan: intPtr(0)})

	assert.Equal(t, []string{
		"Missing must-see activity: Fushimi Inari in Kyoto",
		"Missing must-see activity: Arashiyama Bamboo Grove in Kyoto",
	}, out.CriticalIssues)
	require.Len(t, out.Suggestions, 1)
	assert.Contains(t, out.Suggestions[0], "Day 2:")
	assert.Len(t, out.Optimizations, 1)
}
