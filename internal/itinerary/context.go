package itinerary

// Traveler is a member of the travelling party.
type Traveler struct {
	Name string `json:"name,omitempty"`
	Age  int    `json:"age,omitempty"`
}

// Weather is the forecast for the day being generated.
type Weather struct {
	Condition   string  `json:"condition,omitempty"`
	RainChance  float64 `json:"rainChance,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// MustInclude names a place that the generator should schedule.
type MustInclude struct {
	Name   string `json:"name"`
	City   string `json:"city,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// GenerationContext is the input handed to an activity generator. It is
// assembled from the trip and day, then refined by a regeneration option,
// the rule engine and the preference model.
type GenerationContext struct {
	City         string   `json:"city,omitempty"`
	Date         string   `json:"date,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	DayNumber    int      `json:"dayNumber,omitempty"`
	TripDuration int      `json:"tripDuration,omitempty"`
	Interests    []string `json:"interests,omitempty"`
	Budget       string   `json:"budget,omitempty"`
	TravelStyle  string   `json:"travelStyle,omitempty"`
	Pace         string   `json:"pace,omitempty"`

	DailyBudget   float64    `json:"dailyBudget,omitempty"`
	Travelers     []Traveler `json:"travelers,omitempty"`
	Weather       *Weather   `json:"weather,omitempty"`
	TripsToJapan  *int       `json:"tripsToJapan,omitempty"`
	ActivityLevel string     `json:"activityLevel,omitempty"`
	NightOwl      bool       `json:"nightOwl,omitempty"`
	Hotel         *Activity  `json:"hotel,omitempty"`

	// Regeneration overrides.
	RegenerationOption   string             `json:"regenerationOption,omitempty"`
	CategoryWeights      map[string]float64 `json:"categoryWeights,omitempty"`
	ActivitiesPerDay     int                `json:"activitiesPerDay,omitempty"`
	MaxActivityCost      float64            `json:"maxActivityCost,omitempty"`
	MaxWalkingDistanceKm float64            `json:"maxWalkingDistance,omitempty"`
	PrioritizeNearby     bool               `json:"prioritizeNearbyActivities,omitempty"`
	MealRatio            float64            `json:"mealRatio,omitempty"`
	RestTimeMultiplier   float64            `json:"restTimeMultiplier,omitempty"`

	// Enhancement outputs.
	PrioritizeCategories []string       `json:"prioritizeCategories,omitempty"`
	AvoidCategories      []string       `json:"avoidCategories,omitempty"`
	MustInclude          []MustInclude  `json:"mustInclude,omitempty"`
	Tips                 []string       `json:"tips,omitempty"`
	Messages             []string       `json:"messages,omitempty"`
	ExpertAdjustments    map[string]any `json:"expertAdjustments,omitempty"`
}

// NewGenerationContext builds the base context for regenerating a day.
func NewGenerationContext(trip *Trip, day Day) GenerationContext {
	city := day.City
	if city == "" && len(day.Activities) > 0 {
		city = day.Activities[0].City
	}
	budget := trip.Preferences.Budget
	if budget == "" {
		budget = "moderate"
	}
	style := trip.Preferences.TravelStyle
	if style == "" {
		style = "balanced"
	}
	return GenerationContext{
		City:         city,
		Date:         day.Date,
		StartDate:    trip.StartDate,
		DayNumber:    day.DayNumber,
		TripDuration: trip.Duration(),
		Interests:    append([]string(nil), trip.Preferences.Interests...),
		Budget:       budget,
		TravelStyle:  style,
		Pace:         trip.Preferences.Pace,
		Hotel:        cloneActivity(trip.Hotel),
	}
}

// Union returns a followed by the elements of b not already present,
// preserving first-occurrence order.
func Union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Contains reports whether list contains s.
func Contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
