// Package rules implements the expert rule engine that turns a trip's
// circumstances (weather, budget, party, experience, season, interests) into
// planning decisions for the activity generator.
package rules

import (
	"slices"
	"strings"
	"time"

	"github.com/viajejapon/planner/internal/itinerary"
)

// Actions is what a rule contributes when its condition holds.
type Actions struct {
	Prioritize  []string
	Avoid       []string
	MustInclude []itinerary.MustInclude
	Message     string
	Tips        []string
	Adjustments map[string]any
}

// Rule is a prioritized condition over a generation context.
type Rule struct {
	ID        string
	Priority  int
	Condition func(gc *itinerary.GenerationContext) bool
	Actions   Actions
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "rainy_day",
			Priority: 10,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.Weather != nil && gc.Weather.RainChance > 70
			},
			Actions: Actions{
				Prioritize: []string{"museum", "shopping", "arcade", "aquarium", "indoor-entertainment"},
				Avoid:      []string{"park", "garden", "outdoor-market", "hiking", "beach"},
				Message:    "Rainy day detected: prioritizing indoor activities",
				Adjustments: map[string]any{
					"addUmbrellaTip":    true,
					"reduceWalkingTime": 0.3,
				},
			},
		},
		{
			ID:       "hot_day",
			Priority: 9,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.Weather != nil && gc.Weather.Temperature > 32
			},
			Actions: Actions{
				Prioritize: []string{"aquarium", "museum", "shopping", "indoor-activities"},
				Avoid:      []string{"hiking", "long-walks"},
				Message:    "Very hot day: prioritizing air-conditioned places",
				Adjustments: map[string]any{
					"addWaterBreaks":    true,
					"reduceOutdoorTime": 0.4,
					"addHydrationTip":   true,
				},
			},
		},
		{
			ID:       "traveling_with_kids",
			Priority: 10,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return slices.ContainsFunc(gc.Travelers, func(t itinerary.Traveler) bool {
					return t.Age > 0 && t.Age < 12
				})
			},
			Actions: Actions{
				Prioritize: []string{"aquarium", "zoo", "ghibli-museum", "pokemon-center", "park", "arcade"},
				Avoid:      []string{"temples-long-walks", "nightlife", "bars", "late-night-activities"},
				Message:    "Travelling with children: choosing kid-friendly activities",
				Adjustments: map[string]any{
					"maxActivityDuration": 90,
					"restBreaksEvery":     2,
					"endDayBy":            20,
					"addPlaygrounds":      true,
				},
			},
		},
		{
			ID:       "low_budget",
			Priority: 8,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.DailyBudget > 0 && gc.DailyBudget < 8000
			},
			Actions: Actions{
				Prioritize: []string{"free-temple", "park", "shrine", "walking-tour", "free-observation-deck"},
				Avoid:      []string{"premium-restaurant", "expensive-attraction", "luxury-experience"},
				Message:    "Tight budget: prioritizing affordable activities",
				Tips: []string{
					"Visit temples and shrines (most are free)",
					"Eat at convenience stores (¥500-800)",
					"Use ¥100 shops for souvenirs",
				},
				Adjustments: map[string]any{
					"maxActivityCost":          2000,
					"suggest100YenShops":       true,
					"suggestConvenienceStores": true,
				},
			},
		},
		{
			ID:       "high_budget",
			Priority: 6,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.DailyBudget > 20000
			},
			Actions: Actions{
				Prioritize: []string{"premium-dining", "luxury-experience", "private-tour", "michelin-restaurant"},
				Message:    "Premium budget: including exclusive experiences",
				Adjustments: map[string]any{
					"includeOmakase":       true,
					"includeRyokan":        true,
					"includePrivateGuides": true,
				},
			},
		},
		{
			ID:       "first_time_japan",
			Priority: 10,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.TripsToJapan != nil && *gc.TripsToJapan == 0
			},
			Actions: Actions{
				MustInclude: []itinerary.MustInclude{
					{Name: "Senso-ji", City: "Tokyo"},
					{Name: "Shibuya Crossing", City: "Tokyo"},
					{Name: "Fushimi Inari", City: "Kyoto"},
					{Name: "Arashiyama Bamboo Grove", City: "Kyoto"},
				},
				Message: "First time in Japan: including the unmissable icons",
				Tips: []string{
					"Get an IC card (Suica/Pasmo)",
					"Download an offline translator",
					"Carry cash, many places do not take cards",
					"Learn basic greetings: Arigatou gozaimasu (thank you)",
				},
				Adjustments: map[string]any{
					"addCultureTips":      true,
					"addEtiquetteTips":    true,
					"addEssentialPhrases": true,
				},
			},
		},
		{
			ID:       "frequent_visitor",
			Priority: 7,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.TripsToJapan != nil && *gc.TripsToJapan >= 3
			},
			Actions: Actions{
				Prioritize: []string{"hidden-gems", "local-spots", "off-beaten-path"},
				Avoid:      []string{"tourist-traps", "overly-crowded-spots"},
				Message:    "Frequent visitor: exploring authentic, lesser-known places",
				Adjustments: map[string]any{
					"includeLocalNeighborhoods": true,
					"includeSeasonalEvents":     true,
				},
			},
		},
		{
			ID:       "cherry_blossom_season",
			Priority: 9,
			Condition: func(gc *itinerary.GenerationContext) bool {
				m, ok := startMonth(gc)
				return ok && m >= time.March && m <= time.April
			},
			Actions: Actions{
				Prioritize: []string{"ueno-park", "yoyogi-park", "meguro-river", "philosopher-path", "maruyama-park"},
				Message:    "Sakura season: including the best hanami spots",
				Adjustments: map[string]any{
					"addHanamiTips": true,
					"expectCrowds":  true,
					"bookEarly":     true,
				},
			},
		},
		{
			ID:       "autumn_foliage",
			Priority: 9,
			Condition: func(gc *itinerary.GenerationContext) bool {
				m, ok := startMonth(gc)
				return ok && m >= time.October && m <= time.November
			},
			Actions: Actions{
				Prioritize: []string{"arashiyama", "tofuku-ji", "nikko", "kamakura", "hakone"},
				Message:    "Momiji season: including the best autumn foliage spots",
				Adjustments: map[string]any{
					"addMomijiTips": true,
					"expectCrowds":  true,
				},
			},
		},
		{
			ID:       "foodie_traveler",
			Priority: 7,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return itinerary.Contains(gc.Interests, "food")
			},
			Actions: Actions{
				Prioritize: []string{"tsukiji-market", "dotonbori", "ramen-street", "depachika", "food-tour"},
				Message:    "Foodie detected: maximizing food experiences",
				Adjustments: map[string]any{
					"mealActivityRatio":    0.4,
					"includeStreetFood":    true,
					"includeLocalMarkets":  true,
					"includeMichelinSpots": true,
				},
			},
		},
		{
			ID:       "active_traveler",
			Priority: 6,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.ActivityLevel == "high"
			},
			Actions: Actions{
				Prioritize: []string{"hiking", "cycling", "walking-tours", "climbing"},
				Message:    "Active traveller: including physical activities",
				Adjustments: map[string]any{
					"maxWalkingPerDay":  20,
					"activitiesPerDay":  8,
					"shorterRestBreaks": true,
				},
			},
		},
		{
			ID:       "relaxed_traveler",
			Priority: 6,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.ActivityLevel == "low"
			},
			Actions: Actions{
				Prioritize: []string{"onsen", "tea-ceremony", "zen-garden", "peaceful-temple"},
				Avoid:      []string{"packed-schedule", "rush-activities"},
				Message:    "Relaxed traveller: prioritizing calm experiences",
				Adjustments: map[string]any{
					"maxWalkingPerDay": 8,
					"activitiesPerDay": 4,
					"longerRestBreaks": true,
					"endDayEarly":      true,
				},
			},
		},
		{
			ID:       "night_owl",
			Priority: 5,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return gc.NightOwl
			},
			Actions: Actions{
				Prioritize: []string{"nightlife", "izakaya", "karaoke", "night-views", "late-night-ramen"},
				Message:    "Night owl: including night-time activities",
				Adjustments: map[string]any{
					"startDayLater":          10,
					"endDayLater":            23,
					"includeNightActivities": true,
				},
			},
		},
		{
			ID:       "culture_enthusiast",
			Priority: 8,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return itinerary.Contains(gc.Interests, "culture") || itinerary.Contains(gc.Interests, "history")
			},
			Actions: Actions{
				Prioritize: []string{"temple", "shrine", "museum", "tea-ceremony", "traditional-craft"},
				Message:    "Culture lover: maximizing traditional experiences",
				Adjustments: map[string]any{
					"culturalActivityRatio": 0.6,
					"includeGuidedTours":    true,
					"addHistoricalContext":  true,
				},
			},
		},
		{
			ID:       "tech_anime_fan",
			Priority: 7,
			Condition: func(gc *itinerary.GenerationContext) bool {
				return itinerary.Contains(gc.Interests, "anime") || itinerary.Contains(gc.Interests, "technology")
			},
			Actions: Actions{
				Prioritize: []string{"akihabara", "pokemon-center", "ghibli-museum", "teamlab", "manga-cafe", "anime-shops"},
				Message:    "Tech and anime fan: including otaku culture",
				Adjustments: map[string]any{
					"includeAkihabara":     true,
					"includePokemonCenter": true,
					"includeAnimeSpots":    true,
				},
			},
		},
	}
}

// startMonth parses the trip start date, accepting a plain date or RFC 3339.
func startMonth(gc *itinerary.GenerationContext) (time.Month, bool) {
	s := strings.TrimSpace(gc.StartDate)
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Month(), true
		}
	}
	return 0, false
}
