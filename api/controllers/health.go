package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/paygate-backend/api/responses"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthController answers liveness and readiness probes. Readiness checks the
// stores the intake path depends on; liveness only proves the process serves.
type HealthController struct {
	db     pinger
	cache  pinger
	logger *logger.Logger
}

func NewHealthController(db, cache pinger, logg *logger.Logger) *HealthController {
	return &HealthController{db: db, cache: cache, logger: logg}
}

func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	responses.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{"db": "ok", "redis": "ok"}
	healthy := true

	if c.db != nil {
		if err := c.db.Ping(ctx); err != nil {
			checks["db"] = "unavailable"
			healthy = false
			if c.logger != nil {
				c.logger.Error(ctx, "health.db", err)
			}
		}
	}
	if c.cache != nil {
		if err := c.cache.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
			if c.logger != nil {
				c.logger.Error(ctx, "health.redis", err)
			}
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	responses.WriteJSON(w, status, checks)
}
