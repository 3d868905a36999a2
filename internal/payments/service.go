package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/internal/audit"
	"github.com/angelmondragon/bookings-backend/internal/ledger"
	"github.com/angelmondragon/bookings-backend/internal/payments/providers"
	"github.com/angelmondragon/bookings-backend/internal/reservations"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
	"github.com/angelmondragon/bookings-backend/pkg/outbox"
	"github.com/angelmondragon/bookings-backend/pkg/outbox/payloads"
)

const defaultUpdateAttempts = 3

var (
	errVersionConflict = errors.New("reservation changed concurrently")
	errDuplicate       = errors.New("duplicate provider event")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditSink interface {
	Record(ctx context.Context, entry audit.Entry)
}

type reservationStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ApplyPaymentPatch(ctx context.Context, id uuid.UUID, expectedVersion int, patch reservations.PaymentPatch) (bool, error)
}

type reservationStoreFactory func(tx *gorm.DB) reservationStore

func defaultReservationStore(tx *gorm.DB) reservationStore {
	return reservations.NewRepository(tx)
}

// Result classifies what a webhook delivery did.
type Result string

const (
	ResultProcessed Result = "processed"
	ResultDuplicate Result = "duplicate"
)

// HandleEventInput is one raw webhook delivery.
type HandleEventInput struct {
	Provider        enums.PaymentProvider
	RawBody         []byte
	SignatureHeader string
}

// Outcome describes the effect of a delivery. Applied is false when the
// event was recorded in the ledger without changing the reservation.
type Outcome struct {
	Result            Result                  `json:"result"`
	Provider          enums.PaymentProvider   `json:"provider"`
	EventID           string                  `json:"eventId"`
	ReservationID     uuid.UUID               `json:"reservationId"`
	LedgerStatus      enums.LedgerStatus      `json:"ledgerStatus,omitempty"`
	PaymentStatus     enums.PaymentStatus     `json:"paymentStatus,omitempty"`
	ReservationStatus enums.ReservationStatus `json:"reservationStatus,omitempty"`
	Applied           bool                    `json:"applied"`
}

// Service reconciles payment provider webhooks against reservations.
type Service interface {
	HandleProviderEvent(ctx context.Context, input HandleEventInput) (*Outcome, error)
}

// ServiceParams wires the reconciler.
type ServiceParams struct {
	Providers         *providers.Registry
	Ledger            ledger.Service
	TransactionRunner txRunner
	Outbox            outboxEmitter
	Audit             auditSink
	Logger            *logger.Logger
	Metrics           *metrics.PaymentWebhookMetrics
	UpdateMaxAttempts int
	ReservationStore  reservationStoreFactory
}

type service struct {
	providers    *providers.Registry
	ledger       ledger.Service
	tx           txRunner
	outbox       outboxEmitter
	audit        auditSink
	logg         *logger.Logger
	metrics      *metrics.PaymentWebhookMetrics
	maxAttempts  int
	reservations reservationStoreFactory
	now          func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Providers == nil {
		return nil, fmt.Errorf("provider registry required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.UpdateMaxAttempts
	if attempts <= 0 {
		attempts = defaultUpdateAttempts
	}
	factory := params.ReservationStore
	if factory == nil {
		factory = defaultReservationStore
	}
	return &service{
		providers:    params.Providers,
		ledger:       params.Ledger,
		tx:           params.TransactionRunner,
		outbox:       params.Outbox,
		audit:        params.Audit,
		logg:         params.Logger,
		metrics:      params.Metrics,
		maxAttempts:  attempts,
		reservations: factory,
		now:          time.Now,
	}, nil
}

func (s *service) HandleProviderEvent(ctx context.Context, input HandleEventInput) (*Outcome, error) {
	ctx = s.logg.WithProvider(ctx, string(input.Provider))
	outcome, err := s.handle(ctx, input)
	s.metrics.Inc(string(input.Provider), metricOutcome(outcome, err))
	return outcome, err
}

func (s *service) handle(ctx context.Context, input HandleEventInput) (*Outcome, error) {
	decoder, ok := s.providers.Decoder(input.Provider)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider")
	}

	if decoder.SignatureRequired() {
		if err := decoder.Verify(input.RawBody, input.SignatureHeader); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook signature rejected")
		}
	} else {
		s.logg.Warn(ctx, "payment webhook secret not configured; skipping signature verification")
	}

	event, err := decoder.Decode(input.RawBody)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	if event.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id missing")
	}
	ctx = s.logg.WithField(ctx, "provider_event_id", event.EventID)

	existing, err := s.ledger.FindByProviderEventID(ctx, event.EventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ledger lookup")
	}
	if existing != nil {
		s.logg.Info(ctx, "payment event already processed")
		return duplicateOutcome(event, existing.ReservationID), nil
	}

	if event.ReservationID == uuid.Nil {
		reservationID, found, err := s.ledger.ReservationForPayment(ctx, event.Provider, event.ProviderPaymentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve reservation from payment")
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id missing")
		}
		event.ReservationID = reservationID
	}
	ctx = s.logg.WithReservationID(ctx, event.ReservationID.String())

	var (
		outcome  *Outcome
		previous models.Reservation
	)
	for attempt := 1; ; attempt++ {
		outcome, previous, err = s.apply(ctx, event, input.RawBody)
		if !errors.Is(err, errVersionConflict) {
			break
		}
		if attempt >= s.maxAttempts {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reservation update kept conflicting")
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "reservation version conflict, retrying")
	}
	if errors.Is(err, errDuplicate) {
		s.logg.Info(ctx, "payment event recorded concurrently")
		return duplicateOutcome(event, event.ReservationID), nil
	}
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, event, previous, outcome)
	if outcome.Applied && outcome.PaymentStatus == enums.PaymentStatusPaid {
		s.requestVoucher(ctx, event)
	}
	return outcome, nil
}

// apply runs one attempt of ledger insert plus conditional reservation update.
func (s *service) apply(ctx context.Context, event *providers.Event, rawBody []byte) (*Outcome, models.Reservation, error) {
	var (
		outcome  *Outcome
		previous models.Reservation
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.reservations(tx)
		current, err := store.FindByID(ctx, event.ReservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		previous = *current

		if _, err := s.ledger.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			ReservationID:     event.ReservationID,
			Provider:          event.Provider,
			ProviderEventID:   event.EventID,
			ProviderPaymentID: event.ProviderPaymentID,
			EventType:         event.EventType,
			Amount:            event.Amount,
			Currency:          event.Currency,
			Status:            event.Status,
			RawPayload:        rawBody,
			ProcessedAt:       s.now(),
		}); err != nil {
			if errors.Is(err, ledger.ErrDuplicateEvent) {
				return errDuplicate
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger entry")
		}

		outcome = &Outcome{
			Result:            ResultProcessed,
			Provider:          event.Provider,
			EventID:           event.EventID,
			ReservationID:     event.ReservationID,
			LedgerStatus:      event.Status,
			PaymentStatus:     current.PaymentStatus,
			ReservationStatus: current.Status,
		}

		patch, ok := planPatch(*current, event)
		if !ok {
			return nil
		}
		updated, err := store.ApplyPaymentPatch(ctx, current.ID, current.Version, patch)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation")
		}
		if !updated {
			return errVersionConflict
		}
		outcome.Applied = true
		outcome.PaymentStatus = patch.PaymentStatus
		outcome.ReservationStatus = patch.Status
		return nil
	})
	return outcome, previous, err
}

// planPatch derives the reservation change for an event. ok is false for
// pending events and for events that would move the payment status backwards.
// An approval that lands after a refund keeps the refund but still confirms the
// booking and releases the hold, so both delivery orders end in the same state.
func planPatch(current models.Reservation, event *providers.Event) (reservations.PaymentPatch, bool) {
	target, moves := event.Status.PaymentStatus()
	if !moves {
		return reservations.PaymentPatch{}, false
	}
	approved := event.Status == enums.LedgerStatusApproved
	behind := target.Rank() < current.PaymentStatus.Rank()
	if behind && !approved {
		return reservations.PaymentPatch{}, false
	}

	patch := reservations.PaymentPatch{
		Status:        current.Status,
		PaymentStatus: target,
	}
	if behind {
		patch.PaymentStatus = current.PaymentStatus
	}
	if approved {
		if current.Status != enums.ReservationStatusCompleted {
			patch.Status = enums.ReservationStatusConfirmed
		}
		patch.ClearHold = true
		provider := string(event.Provider)
		patch.PaymentProvider = &provider
		if event.ProviderPaymentID != "" {
			reference := event.ProviderPaymentID
			patch.PaymentReference = &reference
		}
		if behind && !changesLifecycle(current, patch) {
			return reservations.PaymentPatch{}, false
		}
	}
	return patch, true
}

func changesLifecycle(current models.Reservation, patch reservations.PaymentPatch) bool {
	return patch.Status != current.Status ||
		current.HoldExpiresAt != nil ||
		!sameRef(current.PaymentProvider, patch.PaymentProvider) ||
		!sameRef(current.PaymentReference, patch.PaymentReference)
}

// sameRef treats a nil patch field as "leave unchanged".
func sameRef(have, want *string) bool {
	return want == nil || (have != nil && *have == *want)
}

func (s *service) recordAudit(ctx context.Context, event *providers.Event, previous models.Reservation, outcome *Outcome) {
	action := enums.AuditActionPaymentReconciled
	if !outcome.Applied {
		action = enums.AuditActionPaymentIgnored
	}
	s.audit.Record(ctx, audit.Entry{
		ReservationID:  event.ReservationID,
		Action:         action,
		Actor:          enums.AuditActorReconciler,
		PreviousStatus: string(previous.Status),
		NextStatus:     string(outcome.ReservationStatus),
		Details: map[string]any{
			"provider":                event.Provider,
			"provider_event_id":       event.EventID,
			"provider_payment_id":     event.ProviderPaymentID,
			"event_type":              event.EventType,
			"ledger_status":           event.Status,
			"previous_payment_status": previous.PaymentStatus,
			"next_payment_status":     outcome.PaymentStatus,
		},
	})
}

// requestVoucher queues a voucher_requested event. The voucher worker picks
// it up through the outbox publisher; enqueue failures are only logged.
func (s *service) requestVoucher(ctx context.Context, event *providers.Event) {
	audit.BestEffort(ctx, s.logg, "voucher.request", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventVoucherRequested,
				AggregateType: enums.AggregateReservation,
				AggregateID:   event.ReservationID,
				Actor:         &outbox.ActorRef{Subject: string(enums.AuditActorReconciler)},
				OccurredAt:    s.now().UTC(),
				Data: payloads.VoucherRequestedEvent{
					ReservationID:   event.ReservationID,
					Provider:        event.Provider,
					ProviderEventID: event.EventID,
					RequestedAt:     s.now().UTC(),
				},
			})
		})
	})
}

func duplicateOutcome(event *providers.Event, reservationID uuid.UUID) *Outcome {
	return &Outcome{
		Result:        ResultDuplicate,
		Provider:      event.Provider,
		EventID:       event.EventID,
		ReservationID: reservationID,
		LedgerStatus:  event.Status,
	}
}

func metricOutcome(outcome *Outcome, err error) string {
	if err != nil {
		switch pkgerrors.CodeOf(err) {
		case pkgerrors.CodeUnauthorized:
			return "invalid_signature"
		case pkgerrors.CodeValidation:
			return "invalid"
		case pkgerrors.CodeNotFound:
			return "not_found"
		case pkgerrors.CodeConflict:
			return "conflict"
		}
		return "error"
	}
	switch {
	case outcome.Result == ResultDuplicate:
		return "duplicate"
	case outcome.Applied:
		return "applied"
	default:
		return "recorded"
	}
}
