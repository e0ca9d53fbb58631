// Package regeneration rebuilds a single day of a trip in a chosen style,
// compares the result with the original day and keeps a per-trip history of
// regenerations.
package regeneration

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/viajejapon/planner/internal/itinerary"
)

// ErrUnknownOption is returned for option ids outside the catalog.
var ErrUnknownOption = errors.New("unknown regeneration option")

// Adjustments are applied on top of the base generation context.
type Adjustments struct {
	CategoryWeights      map[string]float64 `json:"categoryWeights,omitempty"`
	Interests            []string           `json:"interests,omitempty"`
	MaxActivityCost      float64            `json:"maxActivityCost,omitempty"`
	MaxWalkingDistanceKm float64            `json:"maxWalkingDistance,omitempty"`
	PrioritizeNearby     bool               `json:"prioritizeNearbyActivities,omitempty"`
	MealRatio            float64            `json:"mealRatio,omitempty"`
	ActivitiesPerDay     int                `json:"activitiesPerDay,omitempty"`
	RestTimeMultiplier   float64            `json:"restTimeMultiplier,omitempty"`
	Budget               string             `json:"budget,omitempty"`
}

// Option is a regeneration style the user can pick.
type Option struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Adjustments Adjustments `json:"adjustments"`
}

var catalog = []Option{
	{
		ID:          "more-cultural",
		Name:        "More cultural",
		Description: "More temples, shrines and traditional experiences",
		Adjustments: Adjustments{
			CategoryWeights: map[string]float64{"temple": 2.0, "shrine": 2.0, "museum": 1.5, "tea-ceremony": 2.0},
			Interests:       []string{"culture", "history", "traditional"},
		},
	},
	{
		ID:          "more-economical",
		Name:        "More economical",
		Description: "Free or low-cost activities",
		Adjustments: Adjustments{
			MaxActivityCost: 1000,
			CategoryWeights: map[string]float64{"park": 2.0, "free-temple": 2.0, "shrine": 1.8, "walking-tour": 1.5},
			Budget:          "low",
		},
	},
	{
		ID:          "less-walking",
		Name:        "Less walking",
		Description: "Closer activities with less travel between them",
		Adjustments: Adjustments{
			MaxWalkingDistanceKm: 5,
			PrioritizeNearby:     true,
			CategoryWeights:      map[string]float64{"museum": 1.5, "shopping": 1.3},
		},
	},
	{
		ID:          "more-food",
		Name:        "More food",
		Description: "Focus on food experiences",
		Adjustments: Adjustments{
			CategoryWeights: map[string]float64{"restaurant": 2.0, "market": 2.0, "street-food": 1.8, "food-tour": 2.0},
			Interests:       []string{"food", "culinary"},
			MealRatio:       0.5,
		},
	},
	{
		ID:          "more-nature",
		Name:        "More nature",
		Description: "Parks, gardens and outdoor activities",
		Adjustments: Adjustments{
			CategoryWeights: map[string]float64{"park": 2.0, "garden": 2.0, "hiking": 1.8, "nature": 2.0},
			Interests:       []string{"nature", "outdoor"},
		},
	},
	{
		ID:          "more-modern",
		Name:        "More modern",
		Description: "Technology, shopping and city life",
		Adjustments: Adjustments{
			CategoryWeights: map[string]float64{"shopping": 2.0, "arcade": 1.8, "observation-deck": 1.5, "modern-architecture": 1.8},
			Interests:       []string{"technology", "modern", "shopping"},
		},
	},
	{
		ID:          "more-relaxed",
		Name:        "More relaxed",
		Description: "A calmer pace with more breaks",
		Adjustments: Adjustments{
			ActivitiesPerDay:   4,
			CategoryWeights:    map[string]float64{"onsen": 2.0, "tea-ceremony": 1.8, "zen-garden": 2.0, "cafe": 1.5},
			RestTimeMultiplier: 1.5,
		},
	},
	{
		ID:          "more-active",
		Name:        "More active",
		Description: "More activities at a brisker pace",
		Adjustments: Adjustments{
			ActivitiesPerDay:   8,
			CategoryWeights:    map[string]float64{"hiking": 2.0, "walking-tour": 1.8, "cycling": 1.8},
			RestTimeMultiplier: 0.7,
		},
	},
}

// Catalog returns a copy of the available regeneration options.
func Catalog() []Option {
	out := make([]Option, len(catalog))
	for i, o := range catalog {
		out[i] = o.clone()
	}
	return out
}

// LookupOption finds an option by id. Underscore spellings such as
// "more_cultural" are accepted.
func LookupOption(id string) (Option, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), "_", "-")
	for _, o := range catalog {
		if o.ID == normalized {
			return o.clone(), nil
		}
	}
	return Option{}, fmt.Errorf("%w: %q", ErrUnknownOption, id)
}

func (o Option) clone() Option {
	o.Adjustments.CategoryWeights = maps.Clone(o.Adjustments.CategoryWeights)
	o.Adjustments.Interests = append([]string(nil), o.Adjustments.Interests...)
	return o
}

// Apply merges the option's adjustments into gc. Option values override the
// base context except interests, which are unioned.
func (o Option) Apply(gc itinerary.GenerationContext) itinerary.GenerationContext {
	adj := o.Adjustments
	gc.RegenerationOption = o.ID

	if len(adj.Interests) > 0 {
		gc.Interests = itinerary.Union(gc.Interests, adj.Interests)
	}
	if adj.CategoryWeights != nil {
		gc.CategoryWeights = maps.Clone(adj.CategoryWeights)
	}
	if adj.MaxActivityCost > 0 {
		gc.MaxActivityCost = adj.MaxActivityCost
	}
	if adj.MaxWalkingDistanceKm > 0 {
		gc.MaxWalkingDistanceKm = adj.MaxWalkingDistanceKm
	}
	if adj.PrioritizeNearby {
		gc.PrioritizeNearby = true
	}
	if adj.MealRatio > 0 {
		gc.MealRatio = adj.MealRatio
	}
	if adj.ActivitiesPerDay > 0 {
		gc.ActivitiesPerDay = adj.ActivitiesPerDay
	}
	if adj.RestTimeMultiplier > 0 {
		gc.RestTimeMultiplier = adj.RestTimeMultiplier
	}
	if adj.Budget != "" {
		gc.Budget = adj.Budget
	}
	return gc
}
