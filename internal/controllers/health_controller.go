package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/dtos"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	backend Pinger
}

func NewHealthController(p Pinger) *HealthController {
	return &HealthController{backend: p}
}

func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := c.backend.Ping(ctx); err != nil {
		utils.Logger.WithError(err).Error("waitlist backend unhealthy")
		utils.RespondErrorWithCode(
			w,
			http.StatusServiceUnavailable,
			utils.ErrCodeServiceUnavailable,
			"Service unhealthy",
			nil,
			err,
		)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthCheckResponse{Status: "OK"})
}
