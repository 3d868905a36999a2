package webhooks

import (
	"io"
	"net/http"

	"github.com/angelmondragon/bookings-backend/api/responses"
	"github.com/angelmondragon/bookings-backend/internal/payments"
	"github.com/angelmondragon/bookings-backend/internal/payments/providers"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

// maxWebhookBody bounds what we read from a provider before verifying it.
const maxWebhookBody = 1 << 20

// StripeWebhook reconciles Stripe payment events.
func StripeWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return providerWebhook(svc, enums.PaymentProviderStripe, providers.StripeSignatureHeader, logg)
}

// SquareWebhook reconciles Square payment events.
func SquareWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return providerWebhook(svc, enums.PaymentProviderSquare, providers.SquareSignatureHeader, logg)
}

func providerWebhook(svc payments.Service, provider enums.PaymentProvider, signatureHeader string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		outcome, err := svc.HandleProviderEvent(ctx, payments.HandleEventInput{
			Provider:        provider,
			RawBody:         payload,
			SignatureHeader: r.Header.Get(signatureHeader),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
