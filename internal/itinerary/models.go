// Package itinerary defines the trip, day and activity model shared by the
// optimizer, the regenerator and the preference scorer.
package itinerary

import (
	"errors"
	"fmt"
	"time"

	"github.com/viajejapon/planner/internal/geo"
)

// DefaultActivityDuration is assumed for activities without a duration, in minutes.
const DefaultActivityDuration = 60

// DefaultCategory is used for activities without a category.
const DefaultCategory = "general"

var (
	// ErrDayNotFound is returned when a day index is outside the trip.
	ErrDayNotFound = errors.New("day not found")

	// ErrTripNotFound is returned when a trip does not exist.
	ErrTripNotFound = errors.New("trip not found")
)

// Activity is a single stop in a day.
type Activity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category,omitempty"`
	SubCategory string     `json:"subCategory,omitempty"`
	City        string     `json:"city,omitempty"`
	Description string     `json:"description,omitempty"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
	Duration    int        `json:"duration,omitempty"`
	Cost        float64    `json:"cost,omitempty"`
	Interests   []string   `json:"interests,omitempty"`
	Regenerated bool       `json:"regenerated,omitempty"`
}

// EffectiveDuration returns the duration in minutes, falling back to
// DefaultActivityDuration when unset.
func (a Activity) EffectiveDuration() int {
	if a.Duration <= 0 {
		return DefaultActivityDuration
	}
	return a.Duration
}

// EffectiveCategory returns the category or DefaultCategory.
func (a Activity) EffectiveCategory() string {
	if a.Category == "" {
		return DefaultCategory
	}
	return a.Category
}

// Optimization describes the route optimization applied to a day.
type Optimization struct {
	Applied          bool             `json:"applied"`
	Skipped          bool             `json:"skipped,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	TotalDistanceKm  float64          `json:"totalDistance"`
	TotalTimeMinutes float64          `json:"totalTime"`
	Improvement      float64          `json:"improvement"`
	Method           string           `json:"method"`
	OptimizedAt      time.Time        `json:"optimizedAt"`
	Bounds           *geo.BoundingBox `json:"bounds,omitempty"`
}

// Day is one day of a trip.
type Day struct {
	DayNumber  int        `json:"day"`
	Date       string     `json:"date,omitempty"`
	City       string     `json:"city,omitempty"`
	StartTime  string     `json:"startTime,omitempty"`
	Activities []Activity `json:"activities"`
	Hotel      *Activity  `json:"hotel,omitempty"`
	FixedStart *Activity  `json:"fixedStart,omitempty"`
	FixedEnd   *Activity  `json:"fixedEnd,omitempty"`

	Metrics      *Metrics      `json:"metrics,omitempty"`
	Optimization *Optimization `json:"optimization,omitempty"`

	Regenerated        bool       `json:"regenerated,omitempty"`
	RegeneratedWith    string     `json:"regeneratedWith,omitempty"`
	RegeneratedAt      *time.Time `json:"regeneratedAt,omitempty"`
	OriginalActivities []Activity `json:"originalActivities,omitempty"`
}

// Clone returns a deep copy of the day's slices and pointers.
func (d Day) Clone() Day {
	out := d
	out.Activities = cloneActivities(d.Activities)
	out.OriginalActivities = cloneActivities(d.OriginalActivities)
	out.Hotel = cloneActivity(d.Hotel)
	out.FixedStart = cloneActivity(d.FixedStart)
	out.FixedEnd = cloneActivity(d.FixedEnd)
	if d.Metrics != nil {
		m := *d.Metrics
		m.Categories = make(map[string]int, len(d.Metrics.Categories))
		for k, v := range d.Metrics.Categories {
			m.Categories[k] = v
		}
		out.Metrics = &m
	}
	if d.Optimization != nil {
		o := *d.Optimization
		out.Optimization = &o
	}
	if d.RegeneratedAt != nil {
		t := *d.RegeneratedAt
		out.RegeneratedAt = &t
	}
	return out
}

// Preferences holds trip-level traveller preferences.
type Preferences struct {
	Interests   []string `json:"interests,omitempty"`
	Budget      string   `json:"budget,omitempty"`
	TravelStyle string   `json:"travelStyle,omitempty"`
	Pace        string   `json:"pace,omitempty"`
}

// Trip is a multi-day itinerary.
type Trip struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId,omitempty"`
	Name        string      `json:"name,omitempty"`
	StartDate   string      `json:"startDate,omitempty"`
	Preferences Preferences `json:"preferences"`
	Hotel       *Activity   `json:"hotel,omitempty"`
	Days        []Day       `json:"days"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Duration returns the number of days in the trip.
func (t *Trip) Duration() int {
	return len(t.Days)
}

// Day returns a copy of the day at index.
func (t *Trip) Day(index int) (Day, error) {
	if index < 0 || index >= len(t.Days) {
		return Day{}, fmt.Errorf("%w: index %d of %d", ErrDayNotFound, index, len(t.Days))
	}
	return t.Days[index].Clone(), nil
}

// WithDay returns a copy of the trip with the day at index replaced.
func (t *Trip) WithDay(index int, day Day) (*Trip, error) {
	if index < 0 || index >= len(t.Days) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrDayNotFound, index, len(t.Days))
	}
	out := *t
	out.Days = make([]Day, len(t.Days))
	copy(out.Days, t.Days)
	out.Days[index] = day
	return &out, nil
}

func cloneActivities(in []Activity) []Activity {
	if in == nil {
		return nil
	}
	out := make([]Activity, len(in))
	for i, a := range in {
		out[i] = *cloneActivity(&a)
	}
	return out
}

func cloneActivity(a *Activity) *Activity {
	if a == nil {
		return nil
	}
	c := *a
	if a.Coordinates != nil {
		p := *a.Coordinates
		c.Coordinates = &p
	}
	if a.Interests != nil {
		c.Interests = append([]string(nil), a.Interests...)
	}
	return &c
}
