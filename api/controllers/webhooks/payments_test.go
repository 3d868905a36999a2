package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bookings-backend/internal/audit"
	"github.com/angelmondragon/bookings-backend/internal/ledger"
	"github.com/angelmondragon/bookings-backend/internal/payments"
	"github.com/angelmondragon/bookings-backend/internal/payments/providers"
	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/outbox"
)

type fakePaymentService struct {
	inputs []payments.HandleEventInput
	handle func(input payments.HandleEventInput) (*payments.Outcome, error)
}

func (f *fakePaymentService) HandleProviderEvent(_ context.Context, input payments.HandleEventInput) (*payments.Outcome, error) {
	f.inputs = append(f.inputs, input)
	return f.handle(input)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestStripeWebhookPassesRawBodyAndSignature(t *testing.T) {
	reservationID := uuid.New()
	svc := &fakePaymentService{handle: func(input payments.HandleEventInput) (*payments.Outcome, error) {
		return &payments.Outcome{
			Result:        payments.ResultProcessed,
			Provider:      input.Provider,
			EventID:       "evt_1",
			ReservationID: reservationID,
			Applied:       true,
		}, nil
	}}
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set(providers.StripeSignatureHeader, "t=1,v1=abc")
	rec := httptest.NewRecorder()
	StripeWebhook(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.inputs, 1)
	assert.Equal(t, enums.PaymentProviderStripe, svc.inputs[0].Provider)
	assert.Equal(t, body, svc.inputs[0].RawBody)
	assert.Equal(t, "t=1,v1=abc", svc.inputs[0].SignatureHeader)

	var envelope struct {
		Data payments.Outcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, payments.ResultProcessed, envelope.Data.Result)
	assert.Equal(t, reservationID, envelope.Data.ReservationID)
}

func TestSquareWebhookDuplicateIsOK(t *testing.T) {
	svc := &fakePaymentService{handle: func(input payments.HandleEventInput) (*payments.Outcome, error) {
		return &payments.Outcome{Result: payments.ResultDuplicate, Provider: input.Provider, EventID: "sq_1"}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(providers.SquareSignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	SquareWebhook(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.inputs, 1)
	assert.Equal(t, enums.PaymentProviderSquare, svc.inputs[0].Provider)
	assert.Equal(t, "deadbeef", svc.inputs[0].SignatureHeader)
}

func TestProviderWebhookMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"signature", pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature rejected"), http.StatusUnauthorized},
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "event id missing"), http.StatusBadRequest},
		{"unknown reservation", pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found"), http.StatusNotFound},
		{"ledger down", pkgerrors.New(pkgerrors.CodeDependency, "ledger lookup"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakePaymentService{handle: func(payments.HandleEventInput) (*payments.Outcome, error) {
				return nil, tc.err
			}}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
			rec := httptest.NewRecorder()
			StripeWebhook(svc, testLogger())(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestProviderWebhookRejectsOversizedBody(t *testing.T) {
	svc := &fakePaymentService{handle: func(payments.HandleEventInput) (*payments.Outcome, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(make([]byte, maxWebhookBody+1)))
	rec := httptest.NewRecorder()
	StripeWebhook(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.inputs)
}

func TestProviderWebhookWithoutService(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	SquareWebhook(nil, testLogger())(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStripeWebhookRecordsUnmappedEventAsPending(t *testing.T) {
	conn := dbtest.Open(t)
	logg := testLogger()
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), 0)
	require.NoError(t, err)
	recorder, err := audit.NewRecorder(conn, logg)
	require.NoError(t, err)
	svc, err := payments.NewService(payments.ServiceParams{
		Providers:         providers.NewRegistry(providers.NewStripe("", 0)),
		Ledger:            ledgerSvc,
		TransactionRunner: db.NewFromConn(conn),
		Outbox:            outbox.NewService(outbox.NewRepository(conn), logg),
		Audit:             recorder,
		Logger:            logg,
	})
	require.NoError(t, err)

	hold := time.Now().Add(15 * time.Minute).UTC()
	reservation := models.Reservation{
		ID:            uuid.New(),
		ResourceID:    uuid.New(),
		OwnerID:       uuid.New(),
		Status:        enums.ReservationStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		HoldExpiresAt: &hold,
		Enabled:       true,
		Version:       1,
	}
	require.NoError(t, conn.Create(&reservation).Error)

	body := []byte(fmt.Sprintf(`{"id":"evt_proc","object":"event","type":"payment_intent.processing","data":{"object":{"id":"pi_proc","object":"payment_intent","metadata":{"reservation_id":%q}}}}`, reservation.ID))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	StripeWebhook(svc, logg)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var envelope struct {
		Data payments.Outcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, payments.ResultProcessed, envelope.Data.Result)
	assert.Equal(t, enums.LedgerStatusPending, envelope.Data.LedgerStatus)
	assert.False(t, envelope.Data.Applied)

	var entries []models.PaymentLedgerEntry
	require.NoError(t, conn.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt_proc", entries[0].ProviderEventID)
	require.NotNil(t, entries[0].ProviderPaymentID)
	assert.Equal(t, "pi_proc", *entries[0].ProviderPaymentID)
	assert.Equal(t, "payment_intent.processing", entries[0].EventType)
	assert.Equal(t, enums.LedgerStatusPending, entries[0].Status)

	var got models.Reservation
	require.NoError(t, conn.First(&got, "id = ?", reservation.ID).Error)
	assert.Equal(t, enums.PaymentStatusUnpaid, got.PaymentStatus)
	assert.Equal(t, 1, got.Version)
}
