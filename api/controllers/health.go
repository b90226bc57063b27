package controllers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/gridpoint/energy-backend/api/responses"
	"github.com/gridpoint/energy-backend/pkg/config"
	"github.com/gridpoint/energy-backend/pkg/db"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/logger"
	"github.com/gridpoint/energy-backend/pkg/redis"
)

const readyProbeTimeout = 5 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-GridPoint-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the datasources the API cannot serve without.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-GridPoint-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		var probeErr error
		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				probeErr = multierr.Append(probeErr, err)
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				probeErr = multierr.Append(probeErr, err)
			}
		}

		if probeErr != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, probeErr, "readiness probe failed"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
