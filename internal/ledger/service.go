package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrDuplicateEvent reports that the provider event already has a ledger entry.
var ErrDuplicateEvent = errors.New("provider event already recorded")

// Service defines operations that record payment ledger entries.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEntry(ctx context.Context, input RecordEntryInput) (*models.PaymentLedgerEntry, error)
	FindByProviderEventID(ctx context.Context, providerEventID string) (*models.PaymentLedgerEntry, error)
	ReservationForPayment(ctx context.Context, provider enums.PaymentProvider, providerPaymentID string) (uuid.UUID, bool, error)
}

type service struct {
	repo            Repository
	maxPayloadBytes int
}

// RecordEntryInput captures the immutable data a ledger entry requires.
type RecordEntryInput struct {
	ReservationID     uuid.UUID
	Provider          enums.PaymentProvider
	ProviderEventID   string
	ProviderPaymentID string
	EventType         string
	Amount            decimal.Decimal
	Currency          string
	Status            enums.LedgerStatus
	RawPayload        []byte
	ProcessedAt       time.Time
}

// NewService wires a ledger service. Raw payloads longer than maxPayloadBytes
// are cut before storage; zero keeps them whole.
func NewService(repo Repository, maxPayloadBytes int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if maxPayloadBytes < 0 {
		return nil, fmt.Errorf("raw payload cap must not be negative")
	}
	return &service{repo: repo, maxPayloadBytes: maxPayloadBytes}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), maxPayloadBytes: s.maxPayloadBytes}
}

func (s *service) RecordEntry(ctx context.Context, input RecordEntryInput) (*models.PaymentLedgerEntry, error) {
	if input.ReservationID == uuid.Nil {
		return nil, fmt.Errorf("reservation id is required")
	}
	if !input.Provider.IsValid() {
		return nil, fmt.Errorf("invalid payment provider %q", input.Provider)
	}
	if strings.TrimSpace(input.ProviderEventID) == "" {
		return nil, fmt.Errorf("provider event id is required")
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid ledger status %q", input.Status)
	}

	processedAt := input.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	entry := &models.PaymentLedgerEntry{
		ID:              uuid.New(),
		ReservationID:   input.ReservationID,
		Provider:        input.Provider,
		ProviderEventID: input.ProviderEventID,
		EventType:       input.EventType,
		Amount:          input.Amount,
		Currency:        input.Currency,
		Status:          input.Status,
		RawPayload:      s.truncate(input.RawPayload),
		ProcessedAt:     processedAt.UTC(),
	}
	if input.ProviderPaymentID != "" {
		paymentID := input.ProviderPaymentID
		entry.ProviderPaymentID = &paymentID
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateEvent
		}
		return nil, err
	}
	return entry, nil
}

func (s *service) FindByProviderEventID(ctx context.Context, providerEventID string) (*models.PaymentLedgerEntry, error) {
	if strings.TrimSpace(providerEventID) == "" {
		return nil, fmt.Errorf("provider event id is required")
	}
	return s.repo.FindByProviderEventID(ctx, providerEventID)
}

// ReservationForPayment looks up the reservation an earlier event from the same
// provider for the same payment was attributed to.
func (s *service) ReservationForPayment(ctx context.Context, provider enums.PaymentProvider, providerPaymentID string) (uuid.UUID, bool, error) {
	if strings.TrimSpace(providerPaymentID) == "" {
		return uuid.Nil, false, nil
	}
	entry, err := s.repo.FindLatestByProviderPaymentID(ctx, provider, providerPaymentID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if entry == nil {
		return uuid.Nil, false, nil
	}
	return entry.ReservationID, true, nil
}

func (s *service) truncate(raw []byte) string {
	if s.maxPayloadBytes > 0 && len(raw) > s.maxPayloadBytes {
		raw = raw[:s.maxPayloadBytes]
	}
	return strings.ToValidUTF8(string(raw), "")
}
