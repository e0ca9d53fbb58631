package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/api/response"
	"github.com/viajejapon/planner/internal/resilience"
)

// OpsConfig configures an OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Upstreams reports remote dependencies in the health body. Optional.
	Upstreams *resilience.Registry

	// Ready checks the storage backend. Nil means always ready.
	Ready func(ctx context.Context) error

	Logger zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health. The status is DEGRADED while any
// upstream circuit is open; the endpoint itself always answers 200.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:    models.HealthStatusOK,
		Time:      h.now().UTC(),
		Version:   h.cfg.Version,
		BuildTime: h.cfg.BuildTime,
	}

	if h.cfg.Upstreams != nil {
		for _, u := range h.cfg.Upstreams.AllHealth() {
			if u.IsUnhealthy() {
				health.Status = models.HealthStatusDegraded
			}
			health.Upstreams = append(health.Upstreams, models.UpstreamStatus{
				Name:          u.Name,
				Status:        u.Status,
				LastSuccessAt: u.LastSuccessAt,
				LastFailureAt: u.LastFailureAt,
				LastError:     u.LastError,
			})
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cfg.Ready(ctx); err != nil {
			h.cfg.Logger.Warn().Err(err).Msg("readiness check failed")
			response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
				Status:  models.HealthStatusDegraded,
				Time:    h.now().UTC(),
				Version: h.cfg.Version,
			})
			return
		}
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    h.now().UTC(),
		Version: h.cfg.Version,
	})
}
