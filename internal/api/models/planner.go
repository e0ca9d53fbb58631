package models

import (
	"time"

	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/regeneration"
)

// OptimizeDayRequest is the body of POST /v1/days:optimize.
type OptimizeDayRequest struct {
	Day        *itinerary.Day      `json:"day"`
	FixedStart *itinerary.Activity `json:"fixedStart,omitempty"`
	FixedEnd   *itinerary.Activity `json:"fixedEnd,omitempty"`
	Hotel      *itinerary.Activity `json:"hotel,omitempty"`
}

// CompareDaysRequest is the body of POST /v1/days:compare.
type CompareDaysRequest struct {
	Original    *itinerary.Day `json:"original"`
	Regenerated *itinerary.Day `json:"regenerated"`
}

// ScoreActivitiesRequest is the body of POST /v1/me/activities:score.
type ScoreActivitiesRequest struct {
	Activities []itinerary.Activity        `json:"activities"`
	Context    itinerary.GenerationContext `json:"context"`
}

// RegenerateDayRequest is the body of the day regeneration endpoint.
type RegenerateDayRequest struct {
	OptionID string `json:"optionId"`
}

// ReviewTripRequest is the optional body of the trip review endpoint.
type ReviewTripRequest struct {
	Context itinerary.GenerationContext `json:"context"`
}

// RegenerationOptions lists the available regeneration styles.
type RegenerationOptions struct {
	Options []regeneration.Option `json:"options"`
}

// HealthStatus is the overall or per-upstream status.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
)

// UpstreamStatus reports one remote dependency.
type UpstreamStatus struct {
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// Health is the body of GET /v1/ops/health.
type Health struct {
	Status    HealthStatus     `json:"status"`
	Time      time.Time        `json:"time"`
	Version   string           `json:"version"`
	BuildTime string           `json:"buildTime,omitempty"`
	Upstreams []UpstreamStatus `json:"upstreams,omitempty"`
}

// FeatureFlag is the admin representation of a runtime flag.
type FeatureFlag struct {
	Key         string     `json:"key"`
	Value       any        `json:"value"`
	Description string     `json:"description,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// FeatureFlagsResponse lists every flag.
type FeatureFlagsResponse struct {
	Flags []FeatureFlag `json:"flags"`
}

// UpsertFeatureFlagsRequest replaces the listed flags.
type UpsertFeatureFlagsRequest struct {
	Flags []FeatureFlag `json:"flags"`
}
