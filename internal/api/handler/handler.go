// Package handler provides the HTTP handlers of the planner API.
package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/api/response"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/preference"
	"github.com/viajejapon/planner/internal/regeneration"
)

// writeError maps planner errors to problem responses. Unexpected errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, itinerary.ErrTripNotFound):
		response.NotFound(w, r, "trip not found")
	case errors.Is(err, itinerary.ErrDayNotFound):
		response.NotFound(w, r, "day not found")
	case errors.Is(err, regeneration.ErrUnknownOption):
		response.Unprocessable(w, r, err.Error())
	case errors.Is(err, preference.ErrUnknownEvent), errors.Is(err, preference.ErrInvalidRating):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, regeneration.ErrGeneration):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("activity generation failed")
		response.BadGateway(w, r, "activity generator unavailable")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "")
	}
}

func decodeOrBadRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := response.DecodeJSON(w, r, dst); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return false
	}
	return true
}

func required(field string) []models.FieldError {
	return []models.FieldError{{Field: field, Message: "is required", Code: "required"}}
}
