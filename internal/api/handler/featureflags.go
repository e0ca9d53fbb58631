package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/api/response"
	"github.com/viajejapon/planner/internal/featureflags"
)

// FeatureFlagsHandler handles the feature flag admin endpoints.
type FeatureFlagsHandler struct {
	flags *featureflags.Service
	log   zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(flags *featureflags.Service, log zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{flags: flags, log: log}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	all := h.flags.GetAllFlags(r.Context())

	out := models.FeatureFlagsResponse{Flags: make([]models.FeatureFlag, 0, len(all))}
	for _, f := range all {
		flag := models.FeatureFlag{Key: f.Key, Value: f.Value}
		if def, ok := featureflags.Lookup(f.Key); ok {
			flag.Description = def.Description
		}
		if !f.UpdatedAt.IsZero() {
			updated := f.UpdatedAt
			flag.UpdatedAt = &updated
		}
		out.Flags = append(out.Flags, flag)
	}
	sort.Slice(out.Flags, func(i, j int) bool { return out.Flags[i].Key < out.Flags[j].Key })

	response.JSON(w, r, http.StatusOK, out)
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var input models.UpsertFeatureFlagsRequest
	if !decodeOrBadRequest(w, r, &input) {
		return
	}
	if len(input.Flags) == 0 {
		response.BadRequest(w, r, "flags is required", required("flags"))
		return
	}

	var invalid []models.FieldError
	flags := make([]*featureflags.Flag, 0, len(input.Flags))
	for i, f := range input.Flags {
		if f.Key == "" || f.Value == nil {
			invalid = append(invalid, models.FieldError{
				Field:   fmt.Sprintf("flags[%d]", i),
				Message: "key and value are required",
				Code:    "required",
			})
			continue
		}
		flag := &featureflags.Flag{Key: f.Key, Value: f.Value}
		if err := featureflags.Validate(flag); err != nil {
			invalid = append(invalid, models.FieldError{
				Field:   fmt.Sprintf("flags[%d]", i),
				Message: err.Error(),
				Code:    "invalid",
			})
			continue
		}
		flags = append(flags, flag)
	}
	if len(invalid) > 0 {
		response.BadRequest(w, r, "invalid feature flags", invalid)
		return
	}

	if err := h.flags.SetFlags(r.Context(), flags); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.Info().Int("count", len(flags)).Msg("feature flags updated")
	h.ListFeatureFlags(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.flags.InvalidateCache()
	response.NoContent(w, r)
}
