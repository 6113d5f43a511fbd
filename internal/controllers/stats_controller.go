package controllers

import (
	"context"
	"net/http"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/dtos"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/services"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

const statusOnDemand = "on-demand"

type StatsSource interface {
	GetWaitlistStats(ctx context.Context) models.WaitlistStats
}

type PollerView interface {
	Snapshot() services.StatsSnapshot
}

type StatsController struct {
	source StatsSource
	poller PollerView
}

// NewStatsController serves the poller's cached numbers when a poller is
// running and otherwise reads the backend on every request.
func NewStatsController(source StatsSource, poller PollerView) *StatsController {
	return &StatsController{source: source, poller: poller}
}

// -----------------------------------------------------------------------------
// GET /api/v1/waitlist/stats
// -----------------------------------------------------------------------------
func (c *StatsController) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if c.poller == nil {
		utils.RespondWithJSON(w, http.StatusOK, dtos.StatsResponse{
			Stats:  c.source.GetWaitlistStats(r.Context()),
			Status: statusOnDemand,
		})
		return
	}

	snap := c.poller.Snapshot()
	resp := dtos.StatsResponse{Status: string(snap.Status), Message: snap.Message}
	if snap.Stats != nil {
		resp.Stats = *snap.Stats
	} else {
		resp.Stats = c.source.GetWaitlistStats(r.Context())
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
