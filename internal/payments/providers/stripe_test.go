package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

const stripeSecret = "whsec_test_secret"

func stripeHeader(secret string, ts time.Time, body []byte, extra ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(body)
	header := fmt.Sprintf("t=%d", ts.Unix())
	for _, sig := range extra {
		header += ",v1=" + sig
	}
	return header + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestStripeVerify(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	s := NewStripe(stripeSecret, 5*time.Minute)
	require.True(t, s.SignatureRequired())

	assert.NoError(t, s.Verify(body, stripeHeader(stripeSecret, time.Now(), body)))
	assert.NoError(t, s.Verify(body, stripeHeader(stripeSecret, time.Now(), body, "deadbeef")), "any v1 may match")

	err := s.Verify(body, stripeHeader("whsec_other", time.Now(), body))
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	err = s.Verify([]byte(`{"id":"evt_2"}`), stripeHeader(stripeSecret, time.Now(), body))
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	err = s.Verify(body, stripeHeader(stripeSecret, time.Now().Add(-time.Hour), body))
	assert.True(t, errors.Is(err, ErrInvalidSignature), "stale timestamps are rejected")

	err = s.Verify(body, "")
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	assert.False(t, NewStripe(" ", 0).SignatureRequired())
}

func TestStripeDecodePaymentIntentSucceeded(t *testing.T) {
	reservationID := uuid.New()
	body := []byte(fmt.Sprintf(`{
		"id": "evt_100",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_100",
			"object": "payment_intent",
			"amount": 12550,
			"amount_received": 12550,
			"currency": "usd",
			"metadata": {"reservation_id": %q}
		}}
	}`, reservationID))

	event, err := NewStripe(stripeSecret, 0).Decode(body)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentProviderStripe, event.Provider)
	assert.Equal(t, "evt_100", event.EventID)
	assert.Equal(t, "payment_intent.succeeded", event.EventType)
	assert.Equal(t, reservationID, event.ReservationID)
	assert.Equal(t, "pi_100", event.ProviderPaymentID)
	assert.Equal(t, enums.LedgerStatusApproved, event.Status)
	assert.Equal(t, "USD", event.Currency)
	assert.True(t, event.Amount.Equal(decimal.RequireFromString("125.50")), "got %s", event.Amount)
}

func TestStripeDecodeStatuses(t *testing.T) {
	cases := []struct {
		eventType string
		object    string
		want      enums.LedgerStatus
	}{
		{"payment_intent.payment_failed", `{"id":"pi_1","object":"payment_intent","amount":500,"currency":"eur"}`, enums.LedgerStatusRejected},
		{"payment_intent.canceled", `{"id":"pi_1","object":"payment_intent","amount":500,"currency":"eur"}`, enums.LedgerStatusRejected},
		{"charge.refunded", `{"id":"ch_1","object":"charge","amount":500,"amount_refunded":500,"refunded":true,"currency":"eur","payment_intent":"pi_1"}`, enums.LedgerStatusRefunded},
		{"charge.refunded", `{"id":"ch_1","object":"charge","amount":500,"amount_refunded":200,"refunded":false,"currency":"eur","payment_intent":"pi_1"}`, enums.LedgerStatusPending},
		{"payment_intent.processing", `{"id":"pi_1","object":"payment_intent"}`, enums.LedgerStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			body := []byte(fmt.Sprintf(`{"id":"evt_x","object":"event","type":%q,"data":{"object":%s}}`, tc.eventType, tc.object))
			event, err := NewStripe("", 0).Decode(body)
			require.NoError(t, err)
			assert.Equal(t, tc.want, event.Status)
			assert.Equal(t, "pi_1", event.ProviderPaymentID)
			assert.Equal(t, uuid.Nil, event.ReservationID)
		})
	}
}

func TestStripeDecodeUnmappedEvents(t *testing.T) {
	reservationID := uuid.New()
	cases := []struct {
		name          string
		eventType     string
		object        string
		wantPaymentID string
		wantRes       uuid.UUID
	}{
		{"no metadata", "customer.created", `{"id":"cus_1","object":"customer"}`, "cus_1", uuid.Nil},
		{"metadata not an object", "customer.updated", `{"id":"cus_2","object":"customer","metadata":"oops"}`, "cus_2", uuid.Nil},
		{"metadata null", "invoice.paid", `{"id":"in_1","object":"invoice","metadata":null}`, "in_1", uuid.Nil},
		{"reservation id not a string", "invoice.paid", `{"id":"in_2","metadata":{"reservation_id":42}}`, "in_2", uuid.Nil},
		{"id not a string", "invoice.paid", `{"id":7,"metadata":{}}`, "", uuid.Nil},
		{"metadata carries reservation", "payment_intent.processing", fmt.Sprintf(`{"id":"pi_9","metadata":{"reservation_id":%q}}`, reservationID), "pi_9", reservationID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(fmt.Sprintf(`{"id":"evt_u","object":"event","type":%q,"data":{"object":%s}}`, tc.eventType, tc.object))
			var event *Event
			require.NotPanics(t, func() {
				var err error
				event, err = NewStripe("", 0).Decode(body)
				require.NoError(t, err)
			})
			assert.Equal(t, enums.LedgerStatusPending, event.Status)
			assert.Equal(t, tc.eventType, event.EventType)
			assert.Equal(t, tc.wantPaymentID, event.ProviderPaymentID)
			assert.Equal(t, tc.wantRes, event.ReservationID)
		})
	}
}

func TestStripeDecodeZeroDecimalCurrency(t *testing.T) {
	body := []byte(`{"id":"evt_jpy","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_jpy","object":"payment_intent","amount":5000,"amount_received":5000,"currency":"jpy"}}}`)
	event, err := NewStripe("", 0).Decode(body)
	require.NoError(t, err)
	assert.True(t, event.Amount.Equal(decimal.NewFromInt(5000)))
}

func TestStripeDecodeMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"id":"evt_1","data":{}}`} {
		_, err := NewStripe("", 0).Decode([]byte(body))
		assert.True(t, errors.Is(err, ErrMalformedPayload), "body %s", body)
	}
}
