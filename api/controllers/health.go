package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/bookings-backend/api/responses"
	"github.com/angelmondragon/bookings-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports that the process is serving.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bookings-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis and fails on the first one that is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	deps := []struct {
		name string
		dep  pinger
	}{{"db", dbP}, {"redis", redisP}}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bookings-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		for _, d := range deps {
			name := d.name
			if d.dep == nil {
				continue
			}
			if err := d.dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]string{"dependency": name}))
				return
			}
			checks[name] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
