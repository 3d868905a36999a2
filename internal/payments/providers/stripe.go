package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// StripeSignatureHeader carries "t=<unix>,v1=<hex>[,v1=<hex>...]".
const StripeSignatureHeader = "Stripe-Signature"

// Stripe decodes Stripe event envelopes for payment intents and charges.
type Stripe struct {
	secret    string
	tolerance time.Duration
}

func NewStripe(secret string, tolerance time.Duration) *Stripe {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Stripe{secret: strings.TrimSpace(secret), tolerance: tolerance}
}

func (s *Stripe) Provider() enums.PaymentProvider { return enums.PaymentProviderStripe }

func (s *Stripe) SignatureRequired() bool { return s.secret != "" }

// Verify checks the timestamped signature; any v1 entry may match.
func (s *Stripe) Verify(rawBody []byte, signatureHeader string) error {
	if strings.TrimSpace(signatureHeader) == "" {
		return fmt.Errorf("%w: header missing", ErrInvalidSignature)
	}
	if err := webhook.ValidatePayloadWithTolerance(rawBody, signatureHeader, s.secret, s.tolerance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func (s *Stripe) Decode(rawBody []byte) (*Event, error) {
	// stripe.EventData dereferences data.object unconditionally.
	var shape struct {
		Data *struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if shape.Data != nil && len(shape.Data.Object) == 0 {
		return nil, fmt.Errorf("%w: data.object missing", ErrMalformedPayload)
	}

	var event stripe.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	out := &Event{
		Provider:  enums.PaymentProviderStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
		Status:    enums.LedgerStatusPending,
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", ErrMalformedPayload, err)
		}
		out.ProviderPaymentID = intent.ID
		out.ReservationID = parseReservationID(intent.Metadata[reservationMetadataKey])
		out.Currency = string(enums.NormalizeCurrency(string(intent.Currency)))
		amount := intent.Amount
		if event.Type == stripe.EventTypePaymentIntentSucceeded {
			out.Status = enums.LedgerStatusApproved
			if intent.AmountReceived > 0 {
				amount = intent.AmountReceived
			}
		} else {
			out.Status = enums.LedgerStatusRejected
		}
		out.Amount = minorUnits(amount, out.Currency)

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("%w: charge: %v", ErrMalformedPayload, err)
		}
		out.ProviderPaymentID = charge.ID
		if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
			out.ProviderPaymentID = charge.PaymentIntent.ID
		}
		out.ReservationID = parseReservationID(charge.Metadata[reservationMetadataKey])
		out.Currency = string(enums.NormalizeCurrency(string(charge.Currency)))
		out.Amount = minorUnits(charge.AmountRefunded, out.Currency)
		// Partial refunds leave the reservation paid.
		if charge.Refunded {
			out.Status = enums.LedgerStatusRefunded
		}

	default:
		id, reservation := objectRefs(event.Data.Raw)
		out.ProviderPaymentID = id
		out.ReservationID = parseReservationID(reservation)
	}
	return out, nil
}

// objectRefs reads the object id and metadata.reservation_id from an event
// type this decoder does not model. Objects of any shape are accepted; fields
// that are missing or of an unexpected type come back empty.
func objectRefs(raw json.RawMessage) (id, reservationID string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", ""
	}
	_ = json.Unmarshal(fields["id"], &id)
	var metadata map[string]any
	if err := json.Unmarshal(fields["metadata"], &metadata); err == nil {
		reservationID, _ = metadata[reservationMetadataKey].(string)
	}
	return id, reservationID
}
