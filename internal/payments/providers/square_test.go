package providers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

func TestSquareVerify(t *testing.T) {
	body := []byte(`{"event_id":"sq_1"}`)
	s := NewSquare("sq_secret")
	require.True(t, s.SignatureRequired())

	good := hex.EncodeToString(SignSquare("sq_secret", body))
	assert.NoError(t, s.Verify(body, good))

	assert.True(t, errors.Is(s.Verify(body, hex.EncodeToString(SignSquare("other", body))), ErrInvalidSignature))
	assert.True(t, errors.Is(s.Verify([]byte(`{"event_id":"sq_2"}`), good), ErrInvalidSignature))
	assert.True(t, errors.Is(s.Verify(body, "not-hex"), ErrInvalidSignature))
	assert.True(t, errors.Is(s.Verify(body, ""), ErrInvalidSignature))
	assert.False(t, NewSquare("").SignatureRequired())
}

func TestSquareDecodePayment(t *testing.T) {
	reservationID := uuid.New()
	cases := map[string]enums.LedgerStatus{
		"COMPLETED": enums.LedgerStatusApproved,
		"FAILED":    enums.LedgerStatusRejected,
		"CANCELED":  enums.LedgerStatusRejected,
		"APPROVED":  enums.LedgerStatusPending,
		"PENDING":   enums.LedgerStatusPending,
		"WEIRD":     enums.LedgerStatusPending,
	}
	for status, want := range cases {
		t.Run(status, func(t *testing.T) {
			body := []byte(fmt.Sprintf(`{
				"event_id": "sq_evt_1",
				"type": "payment.updated",
				"data": {"type": "payment", "id": "pay_1", "object": {"payment": {
					"id": "pay_1",
					"status": %q,
					"reference_id": %q,
					"amount_money": {"amount": 9900, "currency": "USD"},
					"total_money": {"amount": 10900, "currency": "USD"}
				}}}
			}`, status, reservationID))
			event, err := NewSquare("").Decode(body)
			require.NoError(t, err)
			assert.Equal(t, enums.PaymentProviderSquare, event.Provider)
			assert.Equal(t, "sq_evt_1", event.EventID)
			assert.Equal(t, want, event.Status)
			assert.Equal(t, reservationID, event.ReservationID)
			assert.Equal(t, "pay_1", event.ProviderPaymentID)
			assert.True(t, event.Amount.Equal(decimal.RequireFromString("109")))
		})
	}
}

func TestSquareDecodeRefund(t *testing.T) {
	body := []byte(`{
		"event_id": "sq_evt_2",
		"type": "refund.updated",
		"data": {"type": "refund", "id": "ref_1", "object": {"refund": {
			"id": "ref_1",
			"status": "COMPLETED",
			"payment_id": "pay_1",
			"amount_money": {"amount": 10900, "currency": "USD"}
		}}}
	}`)
	event, err := NewSquare("").Decode(body)
	require.NoError(t, err)
	assert.Equal(t, enums.LedgerStatusRefunded, event.Status)
	assert.Equal(t, "pay_1", event.ProviderPaymentID)
	assert.Equal(t, uuid.Nil, event.ReservationID, "refunds carry no reference")

	pending := []byte(`{"event_id":"sq_evt_3","type":"refund.created","data":{"object":{"refund":{"id":"ref_2","status":"PENDING","payment_id":"pay_1"}}}}`)
	event, err = NewSquare("").Decode(pending)
	require.NoError(t, err)
	assert.Equal(t, enums.LedgerStatusPending, event.Status)
}

func TestSquareDecodeMalformed(t *testing.T) {
	_, err := NewSquare("").Decode([]byte(`{"event_id":`))
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewStripe("", 0), NewSquare(""), nil)
	d, ok := r.Decoder(enums.PaymentProviderSquare)
	require.True(t, ok)
	assert.Equal(t, enums.PaymentProviderSquare, d.Provider())
	_, ok = r.Decoder("paypal")
	assert.False(t, ok)
}
