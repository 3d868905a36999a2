// Package providers turns raw payment-provider webhooks into canonical events.
package providers

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

const reservationMetadataKey = "reservation_id"

var (
	// ErrInvalidSignature is returned when the signature header does not match the body.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload is returned when the body cannot be decoded.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Event is the provider-neutral view of one webhook delivery.
type Event struct {
	Provider          enums.PaymentProvider
	EventID           string
	EventType         string
	ReservationID     uuid.UUID
	ProviderPaymentID string
	Status            enums.LedgerStatus
	Amount            decimal.Decimal
	Currency          string
}

// Decoder verifies and decodes webhooks for one provider.
type Decoder interface {
	Provider() enums.PaymentProvider
	// SignatureRequired is false when no signing secret is configured.
	SignatureRequired() bool
	Verify(rawBody []byte, signatureHeader string) error
	Decode(rawBody []byte) (*Event, error)
}

// Registry resolves decoders by provider.
type Registry struct {
	decoders map[enums.PaymentProvider]Decoder
}

func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{decoders: map[enums.PaymentProvider]Decoder{}}
	for _, d := range decoders {
		if d != nil {
			r.decoders[d.Provider()] = d
		}
	}
	return r
}

func (r *Registry) Decoder(provider enums.PaymentProvider) (Decoder, bool) {
	d, ok := r.decoders[provider]
	return d, ok
}

// minorUnits converts an integer provider amount into major units.
func minorUnits(amount int64, currency string) decimal.Decimal {
	exp := enums.NormalizeCurrency(currency).MinorUnitExponent()
	return decimal.New(amount, -exp)
}

func parseReservationID(value string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return id
}
