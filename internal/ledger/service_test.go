package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/bookings-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, entry *models.PaymentLedgerEntry) error
	byPaymentID   *models.PaymentLedgerEntry
	byPaymentErr  error
	lastPaymentID string
	lastProvider  enums.PaymentProvider
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, entry *models.PaymentLedgerEntry) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) FindByProviderEventID(ctx context.Context, providerEventID string) (*models.PaymentLedgerEntry, error) {
	return nil, nil
}

func (f *fakeRepository) FindLatestByProviderPaymentID(ctx context.Context, provider enums.PaymentProvider, providerPaymentID string) (*models.PaymentLedgerEntry, error) {
	f.lastProvider = provider
	f.lastPaymentID = providerPaymentID
	return f.byPaymentID, f.byPaymentErr
}

func validInput() RecordEntryInput {
	return RecordEntryInput{
		ReservationID:     uuid.New(),
		Provider:          enums.PaymentProviderStripe,
		ProviderEventID:   "evt_123",
		ProviderPaymentID: "pi_123",
		EventType:         "payment_intent.succeeded",
		Amount:            decimal.RequireFromString("125.50"),
		Currency:          "USD",
		Status:            enums.LedgerStatusApproved,
		RawPayload:        []byte(`{"id":"evt_123"}`),
		ProcessedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestService_RecordEntry(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo, 8192)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.PaymentLedgerEntry
	repo.createFn = func(ctx context.Context, entry *models.PaymentLedgerEntry) error {
		created = entry
		return nil
	}

	input := validInput()
	got, err := svc.RecordEntry(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordEntry error: %v", err)
	}
	if created == nil || got != created {
		t.Fatal("expected service to return the created entry")
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected entry id to be assigned")
	}
	if created.ReservationID != input.ReservationID || created.Status != input.Status {
		t.Fatalf("unexpected entry data: %+v", created)
	}
	if created.ProviderPaymentID == nil || *created.ProviderPaymentID != "pi_123" {
		t.Fatalf("expected provider payment id, got %v", created.ProviderPaymentID)
	}
	if !created.Amount.Equal(decimal.RequireFromString("125.5")) {
		t.Fatalf("unexpected amount %s", created.Amount)
	}
	if created.RawPayload != `{"id":"evt_123"}` {
		t.Fatalf("unexpected raw payload %q", created.RawPayload)
	}
}

func TestService_RecordEntryTruncatesPayload(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo, 16)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	input := validInput()
	input.RawPayload = []byte(strings.Repeat("x", 40))

	entry, err := svc.RecordEntry(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordEntry error: %v", err)
	}
	if len(entry.RawPayload) != 16 {
		t.Fatalf("expected payload capped at 16 bytes, got %d", len(entry.RawPayload))
	}
}

func TestService_RecordEntryValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, 0)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecordEntryInput)
	}{
		{name: "missing reservation", mutate: func(in *RecordEntryInput) { in.ReservationID = uuid.Nil }},
		{name: "invalid provider", mutate: func(in *RecordEntryInput) { in.Provider = "paypal" }},
		{name: "missing event id", mutate: func(in *RecordEntryInput) { in.ProviderEventID = " " }},
		{name: "invalid status", mutate: func(in *RecordEntryInput) { in.Status = "settled" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			if _, err := svc.RecordEntry(context.Background(), input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordEntryRepoError(t *testing.T) {
	expectedErr := errors.New("boom")
	repo := &fakeRepository{createFn: func(ctx context.Context, entry *models.PaymentLedgerEntry) error {
		return expectedErr
	}}
	svc, err := NewService(repo, 0)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	if _, err := svc.RecordEntry(context.Background(), validInput()); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_RecordEntryDuplicateAgainstStore(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db), 8192)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	input := validInput()
	if _, err := svc.RecordEntry(context.Background(), input); err != nil {
		t.Fatalf("first RecordEntry error: %v", err)
	}
	if _, err := svc.RecordEntry(context.Background(), input); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	var count int64
	if err := db.Model(&models.PaymentLedgerEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", count)
	}

	found, err := svc.FindByProviderEventID(context.Background(), "evt_123")
	if err != nil || found == nil {
		t.Fatalf("expected entry lookup to succeed, got %v %v", found, err)
	}
	if !found.Amount.Equal(decimal.RequireFromString("125.50")) {
		t.Fatalf("unexpected stored amount %s", found.Amount)
	}
}

func TestService_ReservationForPayment(t *testing.T) {
	reservationID := uuid.New()
	repo := &fakeRepository{byPaymentID: &models.PaymentLedgerEntry{ReservationID: reservationID}}
	svc, err := NewService(repo, 0)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	got, ok, err := svc.ReservationForPayment(context.Background(), enums.PaymentProviderStripe, "pi_777")
	if err != nil || !ok || got != reservationID {
		t.Fatalf("expected reservation %s, got %s ok=%v err=%v", reservationID, got, ok, err)
	}
	if repo.lastPaymentID != "pi_777" || repo.lastProvider != enums.PaymentProviderStripe {
		t.Fatalf("expected stripe lookup by pi_777, got %s %q", repo.lastProvider, repo.lastPaymentID)
	}

	repo.byPaymentID = nil
	if _, ok, err := svc.ReservationForPayment(context.Background(), enums.PaymentProviderStripe, "pi_unknown"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := svc.ReservationForPayment(context.Background(), enums.PaymentProviderStripe, ""); ok {
		t.Fatal("expected empty payment id to miss")
	}
}

func TestService_ReservationForPaymentIsScopedByProvider(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db), 0)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	stripeEntry := validInput()
	stripeEntry.ProviderEventID = "evt_stripe"
	stripeEntry.ProviderPaymentID = "pay_shared"
	squareEntry := validInput()
	squareEntry.Provider = enums.PaymentProviderSquare
	squareEntry.ProviderEventID = "evt_square"
	squareEntry.ProviderPaymentID = "pay_shared"
	squareEntry.ProcessedAt = stripeEntry.ProcessedAt.Add(time.Minute)
	for _, input := range []RecordEntryInput{stripeEntry, squareEntry} {
		if _, err := svc.RecordEntry(context.Background(), input); err != nil {
			t.Fatalf("RecordEntry %s: %v", input.ProviderEventID, err)
		}
	}

	got, ok, err := svc.ReservationForPayment(context.Background(), enums.PaymentProviderStripe, "pay_shared")
	if err != nil || !ok || got != stripeEntry.ReservationID {
		t.Fatalf("expected stripe reservation %s, got %s ok=%v err=%v", stripeEntry.ReservationID, got, ok, err)
	}
	got, ok, err = svc.ReservationForPayment(context.Background(), enums.PaymentProviderSquare, "pay_shared")
	if err != nil || !ok || got != squareEntry.ReservationID {
		t.Fatalf("expected square reservation %s, got %s ok=%v err=%v", squareEntry.ReservationID, got, ok, err)
	}
}
