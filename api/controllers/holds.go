package controllers

import (
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bookings-backend/api/responses"
	"github.com/angelmondragon/bookings-backend/internal/holds"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

type sweepResponse struct {
	holds.SweepResult
	Failed int `json:"failed"`
}

// AdminSweepHolds runs one sweep batch on demand. Rows that fail to expire are
// counted in the response; the rows that did expire stay committed and the
// next sweep retries the rest.
func AdminSweepHolds(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold sweeper unavailable"))
			return
		}

		result, err := svc.SweepExpiredHolds(ctx, time.Now().UTC())
		body := sweepResponse{SweepResult: result, Failed: len(multierr.Errors(err))}
		if err != nil && logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"checked": result.Checked,
				"expired": result.Expired,
				"failed":  body.Failed,
			})
			logg.Error(ctx, "admin hold sweep finished with failures", err)
		}
		responses.WriteSuccess(w, body)
	}
}
