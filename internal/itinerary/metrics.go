package itinerary

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultStartTime is used when a day has no start time.
	DefaultStartTime = "09:00"

	// TransitMinutes is added after every activity when estimating the end time.
	TransitMinutes = 15

	// WalkingKmPerActivity is the rough walking estimate per activity.
	WalkingKmPerActivity = 2.0
)

// Metrics summarises a day.
type Metrics struct {
	TotalActivities    int            `json:"totalActivities"`
	TotalDuration      int            `json:"totalDuration"`
	TotalCost          float64        `json:"totalCost"`
	Categories         map[string]int `json:"categories"`
	EstimatedWalkingKm float64        `json:"estimatedWalking"`
	StartTime          string         `json:"startTime"`
	EndTime            string         `json:"endTime"`
}

// ComputeMetrics derives the metrics of a day from its activities.
func ComputeMetrics(day Day) Metrics {
	m := Metrics{
		TotalActivities:    len(day.Activities),
		Categories:         make(map[string]int),
		EstimatedWalkingKm: float64(len(day.Activities)) * WalkingKmPerActivity,
		StartTime:          day.StartTime,
	}
	if m.StartTime == "" {
		m.StartTime = DefaultStartTime
	}

	for _, a := range day.Activities {
		m.TotalDuration += a.EffectiveDuration()
		m.TotalCost += a.Cost
		m.Categories[a.EffectiveCategory()]++
	}

	start, err := parseClock(m.StartTime)
	if err != nil {
		start, _ = parseClock(DefaultStartTime)
		m.StartTime = DefaultStartTime
	}
	m.EndTime = formatClock(start + m.TotalDuration + TransitMinutes*len(day.Activities))

	return m
}

// parseClock converts "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock hour %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock minute %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// formatClock renders minutes as "HH:MM". Hours are not wrapped at midnight
// so late days read as e.g. "25:30".
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
