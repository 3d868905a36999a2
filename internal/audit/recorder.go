// Package audit appends reservation state changes to reservation_audit_logs.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

// Entry is one audit record. Statuses are optional; Details is stored as JSON.
type Entry struct {
	ReservationID  uuid.UUID
	Action         enums.AuditAction
	Actor          enums.AuditActor
	PreviousStatus string
	NextStatus     string
	Details        map[string]any
}

// Recorder writes audit entries outside of the caller's transaction.
type Recorder struct {
	db   *gorm.DB
	logg *logger.Logger
	now  func() time.Time
}

func NewRecorder(db *gorm.DB, logg *logger.Logger) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("audit db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("audit logger required")
	}
	return &Recorder{db: db, logg: logg, now: time.Now}, nil
}

// Record appends the entry. Failures are logged and never returned.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	ctx = r.logg.WithReservationID(ctx, entry.ReservationID.String())
	BestEffort(ctx, r.logg, "audit."+string(entry.Action), func(ctx context.Context) error {
		return r.insert(ctx, entry)
	})
}

func (r *Recorder) insert(ctx context.Context, entry Entry) error {
	if entry.ReservationID == uuid.Nil {
		return fmt.Errorf("audit entry missing reservation id")
	}
	if entry.Action == "" || entry.Actor == "" {
		return fmt.Errorf("audit entry missing action or actor")
	}

	row := models.ReservationAuditLog{
		ID:             uuid.New(),
		ReservationID:  entry.ReservationID,
		Action:         entry.Action,
		Actor:          entry.Actor,
		PreviousStatus: optional(entry.PreviousStatus),
		NextStatus:     optional(entry.NextStatus),
		CreatedAt:      r.now().UTC(),
	}
	if len(entry.Details) > 0 {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		row.Details = details
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
