package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/api/middleware"
	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/api/response"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/planner"
	"github.com/viajejapon/planner/internal/preference"
)

// MeHandler serves the caller's preference-driven endpoints.
type MeHandler struct {
	planner *planner.Service
	log     zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(p *planner.Service, log zerolog.Logger) *MeHandler {
	return &MeHandler{planner: p, log: log}
}

// EnhanceContext handles POST /v1/me/context:enhance.
func (h *MeHandler) EnhanceContext(w http.ResponseWriter, r *http.Request) {
	var gc itinerary.GenerationContext
	if !decodeOrBadRequest(w, r, &gc) {
		return
	}

	enhanced, err := h.planner.EnhanceGenerationContext(r.Context(), middleware.GetUserID(r.Context()), gc)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, enhanced)
}

// ScoreActivities handles POST /v1/me/activities:score.
func (h *MeHandler) ScoreActivities(w http.ResponseWriter, r *http.Request) {
	var input models.ScoreActivitiesRequest
	if !decodeOrBadRequest(w, r, &input) {
		return
	}
	if input.Activities == nil {
		response.BadRequest(w, r, "activities is required", required("activities"))
		return
	}

	scored, err := h.planner.ScoreActivities(r.Context(), middleware.GetUserID(r.Context()), input.Activities, input.Context)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"activities": scored})
}

// TrackPreferenceEvent handles POST /v1/me/preferences/events and returns
// the updated insights.
func (h *MeHandler) TrackPreferenceEvent(w http.ResponseWriter, r *http.Request) {
	var event preference.Event
	if !decodeOrBadRequest(w, r, &event) {
		return
	}

	model, err := h.planner.TrackAction(r.Context(), middleware.GetUserID(r.Context()), event)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, model.Insights())
}

// GetPreferenceInsights handles GET /v1/me/preferences/insights.
func (h *MeHandler) GetPreferenceInsights(w http.ResponseWriter, r *http.Request) {
	stats, err := h.planner.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

// ResetPreferences handles DELETE /v1/me/preferences.
func (h *MeHandler) ResetPreferences(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.ResetPreferences(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.NoContent(w, r)
}
