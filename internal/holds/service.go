package holds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bookings-backend/internal/audit"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
)

const defaultBatchSize = 100

type holdStore interface {
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
	ExpireHold(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type auditSink interface {
	Record(ctx context.Context, entry audit.Entry)
}

// SweepResult reports how many candidates were inspected and how many this run expired.
type SweepResult struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
}

// Service expires unpaid holds whose deadline has passed.
type Service interface {
	SweepExpiredHolds(ctx context.Context, now time.Time) (SweepResult, error)
}

// ServiceParams configure the sweeper.
type ServiceParams struct {
	Store     holdStore
	Audit     auditSink
	Logger    *logger.Logger
	Metrics   *metrics.HoldSweepMetrics
	BatchSize int
}

type service struct {
	store     holdStore
	audit     auditSink
	logg      *logger.Logger
	metrics   *metrics.HoldSweepMetrics
	batchSize int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("hold store required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &service{
		store:     params.Store,
		audit:     params.Audit,
		logg:      params.Logger,
		metrics:   params.Metrics,
		batchSize: batch,
	}, nil
}

// SweepExpiredHolds expires at most one batch of lapsed holds. A failed
// candidate query yields an empty result and no error. Per-row update failures
// are returned together after the rest of the batch has been processed.
func (s *service) SweepExpiredHolds(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.UTC()
	candidates, err := s.store.ListExpiredHolds(ctx, now, s.batchSize)
	if err != nil {
		s.logg.Error(ctx, "hold sweep candidate query failed", err)
		return SweepResult{}, nil
	}

	result := SweepResult{Checked: len(candidates)}
	var errs error
	for _, candidate := range candidates {
		rowCtx := s.logg.WithReservationID(ctx, candidate.ID.String())
		expired, err := s.store.ExpireHold(ctx, candidate.ID, now)
		if err != nil {
			s.logg.Error(rowCtx, "hold expiry update failed", err)
			errs = multierr.Append(errs, fmt.Errorf("expire reservation %s: %w", candidate.ID, err))
			continue
		}
		if !expired {
			// Paid or cancelled since the candidate query ran.
			continue
		}
		result.Expired++

		details := map[string]any{"swept_at": now.Format(time.RFC3339)}
		if candidate.HoldExpiresAt != nil {
			details["hold_expires_at"] = candidate.HoldExpiresAt.UTC().Format(time.RFC3339)
		}
		s.audit.Record(rowCtx, audit.Entry{
			ReservationID:  candidate.ID,
			Action:         enums.AuditActionHoldExpired,
			Actor:          enums.AuditActorSweeper,
			PreviousStatus: string(candidate.Status),
			NextStatus:     string(enums.ReservationStatusExpired),
			Details:        details,
		})
	}

	s.metrics.Observe(result.Checked, result.Expired)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"checked": result.Checked,
		"expired": result.Expired,
	}), "hold sweep complete")
	return result, errs
}
