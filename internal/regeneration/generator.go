package regeneration

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/viajejapon/planner/internal/itinerary"
)

// Generator produces activities for one day from a generation context.
type Generator interface {
	GenerateActivitiesForDay(ctx context.Context, gc itinerary.GenerationContext) ([]itinerary.Activity, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, gc itinerary.GenerationContext) ([]itinerary.Activity, error)

// GenerateActivitiesForDay implements Generator.
func (f GeneratorFunc) GenerateActivitiesForDay(ctx context.Context, gc itinerary.GenerationContext) ([]itinerary.Activity, error) {
	return f(ctx, gc)
}

const (
	placeholderActivities = 5
	placeholderDuration   = 90
	placeholderCost       = 1500
)

// PlaceholderGenerator fills a day with generic activities. It is used when no
// real generator is configured and only keeps the day structurally valid.
type PlaceholderGenerator struct{}

// GenerateActivitiesForDay implements Generator.
func (PlaceholderGenerator) GenerateActivitiesForDay(_ context.Context, gc itinerary.GenerationContext) ([]itinerary.Activity, error) {
	n := gc.ActivitiesPerDay
	if n <= 0 {
		n = placeholderActivities
	}

	batch := uuid.NewString()[:8]
	activities := make([]itinerary.Activity, n)
	for i := range activities {
		activities[i] = itinerary.Activity{
			ID:          fmt.Sprintf("regen_%s_%d", batch, i),
			Name:        fmt.Sprintf("Activity %d", i+1),
			Category:    itinerary.DefaultCategory,
			Duration:    placeholderDuration,
			Cost:        placeholderCost,
			Description: "Regenerated placeholder activity",
			City:        gc.City,
			Regenerated: true,
		}
	}
	return activities, nil
}

var _ Generator = PlaceholderGenerator{}
