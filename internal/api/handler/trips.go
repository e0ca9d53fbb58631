package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/api/middleware"
	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/api/response"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/planner"
)

// TripHandler serves the caller's stored trips.
type TripHandler struct {
	planner *planner.Service
	trips   itinerary.Repository
	log     zerolog.Logger
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(p *planner.Service, trips itinerary.Repository, log zerolog.Logger) *TripHandler {
	return &TripHandler{planner: p, trips: trips, log: log}
}

// loadOwned returns the trip when the caller owns it. Trips owned by someone
// else are reported as not found.
func (h *TripHandler) loadOwned(r *http.Request) (*itinerary.Trip, error) {
	id := chi.URLParam(r, "tripId")
	trip, err := h.trips.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if trip.UserID != "" && trip.UserID != middleware.GetUserID(r.Context()) {
		return nil, fmt.Errorf("%w: %s", itinerary.ErrTripNotFound, id)
	}
	return trip, nil
}

// GetTrip handles GET /v1/me/trips/{tripId}.
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.loadOwned(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, trip)
}

// PutTrip handles PUT /v1/me/trips/{tripId}, creating or replacing the trip.
func (h *TripHandler) PutTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tripId")

	var trip itinerary.Trip
	if !decodeOrBadRequest(w, r, &trip) {
		return
	}
	if trip.ID != "" && trip.ID != id {
		response.BadRequest(w, r, "trip id does not match the path", []models.FieldError{
			{Field: "id", Message: "must match the path", Code: "mismatch"},
		})
		return
	}

	caller := middleware.GetUserID(r.Context())
	existing, err := h.trips.Get(r.Context(), id)
	switch {
	case err == nil && existing.UserID != "" && existing.UserID != caller:
		writeError(w, r, h.log, fmt.Errorf("%w: %s", itinerary.ErrTripNotFound, id))
		return
	case err != nil && !errors.Is(err, itinerary.ErrTripNotFound):
		writeError(w, r, h.log, err)
		return
	}

	trip.ID = id
	trip.UserID = caller
	if err := h.trips.Save(r.Context(), &trip); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, &trip)
}

// RegenerateDay handles POST /v1/me/trips/{tripId}/days/{dayIndex}/regenerate.
// The trip is saved with the regenerated day in place.
func (h *TripHandler) RegenerateDay(w http.ResponseWriter, r *http.Request) {
	dayIndex, err := strconv.Atoi(chi.URLParam(r, "dayIndex"))
	if err != nil {
		response.BadRequest(w, r, "dayIndex must be an integer", []models.FieldError{
			{Field: "dayIndex", Message: "must be an integer", Code: "invalid"},
		})
		return
	}

	var input models.RegenerateDayRequest
	if !decodeOrBadRequest(w, r, &input) {
		return
	}
	if input.OptionID == "" {
		response.BadRequest(w, r, "optionId is required", required("optionId"))
		return
	}

	trip, err := h.loadOwned(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	result, err := h.planner.RegenerateDay(r.Context(), trip, dayIndex, input.OptionID, nil)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	updated, err := trip.WithDay(dayIndex, result.Day)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.trips.Save(r.Context(), updated); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}

// RegenerationStats handles GET /v1/me/trips/{tripId}/regenerations/stats.
func (h *TripHandler) RegenerationStats(w http.ResponseWriter, r *http.Request) {
	trip, err := h.loadOwned(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	stats, err := h.planner.RegenerationStats(r.Context(), trip.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

// ReviewTrip handles POST /v1/me/trips/{tripId}/review. The body is
// optional; without one the trip is checked against its first day's context.
func (h *TripHandler) ReviewTrip(w http.ResponseWriter, r *http.Request) {
	var input models.ReviewTripRequest
	if err := response.DecodeJSON(w, r, &input); err != nil && !errors.Is(err, response.ErrEmptyBody) {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	trip, err := h.loadOwned(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	gc := input.Context
	if gc.City == "" && len(trip.Days) > 0 {
		gc = itinerary.NewGenerationContext(trip, trip.Days[0])
	}
	response.JSON(w, r, http.StatusOK, h.planner.ReviewTrip(trip, gc))
}
