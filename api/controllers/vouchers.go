package controllers

import (
	"net/http"

	"github.com/angelmondragon/bookings-backend/api/responses"
	"github.com/angelmondragon/bookings-backend/api/validators"
	"github.com/angelmondragon/bookings-backend/internal/vouchers"
	"github.com/angelmondragon/bookings-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

// IssueVoucher issues (or returns the existing) voucher for a paid reservation.
func IssueVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}
		if _, ok := auth.CallerFrom(ctx); !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		reservationID, err := validators.PathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithReservationID(ctx, reservationID.String())
		}

		result, err := svc.IssueVoucher(ctx, reservationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.AlreadyExists {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
