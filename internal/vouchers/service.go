package vouchers

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/internal/audit"
	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
)

const maxCodeAttempts = 3

type reservationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

type voucherStore interface {
	FindEnabledByReservation(ctx context.Context, reservationID uuid.UUID) (*models.Voucher, error)
	Create(ctx context.Context, voucher *models.Voucher) error
}

type auditSink interface {
	Record(ctx context.Context, entry audit.Entry)
}

// IssueResult is the voucher for a reservation. AlreadyExists is true when an
// earlier call (or a concurrent one) created it.
type IssueResult struct {
	VoucherID     uuid.UUID `json:"voucherId"`
	ReservationID uuid.UUID `json:"reservationId"`
	VoucherCode   string    `json:"voucherCode"`
	VoucherURL    string    `json:"voucherUrl"`
	QRPayload     string    `json:"qrPayload"`
	IssuedAt      time.Time `json:"issuedAt"`
	AlreadyExists bool      `json:"alreadyExists"`
}

// Service issues at most one active voucher per paid reservation.
type Service interface {
	IssueVoucher(ctx context.Context, reservationID uuid.UUID) (*IssueResult, error)
}

type ServiceParams struct {
	Reservations reservationReader
	Vouchers     voucherStore
	Audit        auditSink
	Logger       *logger.Logger
	Metrics      *metrics.VoucherMetrics
	Config       config.VouchersConfig
}

type service struct {
	reservations reservationReader
	vouchers     voucherStore
	audit        auditSink
	logg         *logger.Logger
	metrics      *metrics.VoucherMetrics
	cfg          config.VouchersConfig
	now          func() time.Time
	random       io.Reader
}

func NewService(params ServiceParams) (Service, error) {
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation reader required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher store required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		reservations: params.Reservations,
		vouchers:     params.Vouchers,
		audit:        params.Audit,
		logg:         params.Logger,
		metrics:      params.Metrics,
		cfg:          params.Config,
		now:          func() time.Time { return time.Now().UTC() },
		random:       rand.Reader,
	}, nil
}

func (s *service) IssueVoucher(ctx context.Context, reservationID uuid.UUID) (*IssueResult, error) {
	ctx = s.logg.WithReservationID(ctx, reservationID.String())
	result, err := s.issue(ctx, reservationID)
	s.metrics.Inc(metricResult(result, err))
	return result, err
}

func (s *service) issue(ctx context.Context, reservationID uuid.UUID) (*IssueResult, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	reservation, err := s.reservations.FindByID(ctx, reservationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotEligible, "reservation not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	if reason := ineligibleReason(reservation); reason != "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotEligible, reason).WithDetails(map[string]any{
			"status":        reservation.Status,
			"paymentStatus": reservation.PaymentStatus,
		})
	}

	existing, err := s.vouchers.FindEnabledByReservation(ctx, reservation.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load voucher")
	}
	if existing != nil {
		return toResult(existing, true), nil
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		voucher, err := s.build(reservation.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build voucher")
		}
		err = s.vouchers.Create(ctx, voucher)
		if err == nil {
			s.recordAudit(ctx, reservation, voucher)
			return toResult(voucher, false), nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create voucher")
		}

		// Either a concurrent issue won the reservation index or the code collided.
		winner, findErr := s.vouchers.FindEnabledByReservation(ctx, reservation.ID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load voucher")
		}
		if winner != nil {
			return toResult(winner, true), nil
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "voucher code collision, regenerating")
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique voucher code")
}

func (s *service) build(reservationID uuid.UUID) (*models.Voucher, error) {
	issuedAt := s.now().UTC()
	code, err := newCode(reservationID, issuedAt, s.random)
	if err != nil {
		return nil, err
	}
	qr, err := qrPayload(reservationID, code)
	if err != nil {
		return nil, err
	}
	return &models.Voucher{
		ID:            uuid.New(),
		ReservationID: reservationID,
		VoucherCode:   code,
		VoucherURL:    s.cfg.URLFor(code),
		QRPayload:     qr,
		Enabled:       true,
		IssuedAt:      issuedAt,
	}, nil
}

func (s *service) recordAudit(ctx context.Context, reservation *models.Reservation, voucher *models.Voucher) {
	status := string(reservation.Status)
	s.audit.Record(ctx, audit.Entry{
		ReservationID:  reservation.ID,
		Action:         enums.AuditActionVoucherIssued,
		Actor:          enums.AuditActorVouchers,
		PreviousStatus: status,
		NextStatus:     status,
		Details: map[string]any{
			"voucher_id":   voucher.ID.String(),
			"voucher_code": voucher.VoucherCode,
		},
	})
	s.logg.Info(s.logg.WithField(ctx, "voucher_code", voucher.VoucherCode), "voucher issued")
}

func ineligibleReason(r *models.Reservation) string {
	switch {
	case !r.Enabled:
		return "reservation is disabled"
	case r.PaymentStatus != enums.PaymentStatusPaid:
		return "reservation is not paid"
	case r.Status != enums.ReservationStatusConfirmed && r.Status != enums.ReservationStatusCompleted:
		return "reservation status does not allow vouchers"
	}
	return ""
}

func toResult(v *models.Voucher, existed bool) *IssueResult {
	return &IssueResult{
		VoucherID:     v.ID,
		ReservationID: v.ReservationID,
		VoucherCode:   v.VoucherCode,
		VoucherURL:    v.VoucherURL,
		QRPayload:     v.QRPayload,
		IssuedAt:      v.IssuedAt,
		AlreadyExists: existed,
	}
}

func metricResult(result *IssueResult, err error) string {
	if err != nil {
		switch pkgerrors.CodeOf(err) {
		case pkgerrors.CodeNotEligible:
			return "not_eligible"
		case pkgerrors.CodeValidation:
			return "invalid"
		default:
			return "error"
		}
	}
	if result.AlreadyExists {
		return "existing"
	}
	return "issued"
}
