package handler

import (
	"net/http"

	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/api/response"
	"github.com/viajejapon/planner/internal/planner"
	"github.com/viajejapon/planner/internal/regeneration"
)

// DayHandler serves stateless day operations.
type DayHandler struct {
	planner *planner.Service
}

// NewDayHandler creates a new DayHandler.
func NewDayHandler(p *planner.Service) *DayHandler {
	return &DayHandler{planner: p}
}

// ListRegenerationOptions handles GET /v1/regeneration/options.
func (h *DayHandler) ListRegenerationOptions(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.RegenerationOptions{Options: regeneration.Catalog()})
}

// OptimizeDay handles POST /v1/days:optimize. The optimized day is returned
// even when the search was skipped or failed; its optimization metadata
// says which.
func (h *DayHandler) OptimizeDay(w http.ResponseWriter, r *http.Request) {
	var input models.OptimizeDayRequest
	if !decodeOrBadRequest(w, r, &input) {
		return
	}
	if input.Day == nil {
		response.BadRequest(w, r, "day is required", required("day"))
		return
	}

	day := h.planner.OptimizeRoutes(r.Context(), *input.Day, planner.OptimizeOptions{
		FixedStart: input.FixedStart,
		FixedEnd:   input.FixedEnd,
		Hotel:      input.Hotel,
	})
	response.JSON(w, r, http.StatusOK, day)
}

// CompareDays handles POST /v1/days:compare.
func (h *DayHandler) CompareDays(w http.ResponseWriter, r *http.Request) {
	var input models.CompareDaysRequest
	if !decodeOrBadRequest(w, r, &input) {
		return
	}

	var missing []models.FieldError
	if input.Original == nil {
		missing = append(missing, required("original")...)
	}
	if input.Regenerated == nil {
		missing = append(missing, required("regenerated")...)
	}
	if len(missing) > 0 {
		response.BadRequest(w, r, "both days are required", missing)
		return
	}

	response.JSON(w, r, http.StatusOK, regeneration.CompareDay(*input.Original, *input.Regenerated))
}
