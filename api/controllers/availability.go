package controllers

import (
	"net/http"

	"github.com/angelmondragon/bookings-backend/api/responses"
	"github.com/angelmondragon/bookings-backend/api/validators"
	"github.com/angelmondragon/bookings-backend/internal/availability"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

type availabilityParams struct {
	From string `query:"from" validate:"omitempty,max=32"`
	To   string `query:"to" validate:"omitempty,max=32"`
}

// ResourceAvailability returns blocked dates and occupied slots for a resource.
func ResourceAvailability(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}

		resourceID, err := validators.PathUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var params availabilityParams
		if err := validators.BindQuery(r, &params); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.GetAvailability(ctx, availability.Query{
			ResourceID: resourceID,
			From:       params.From,
			To:         params.To,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
