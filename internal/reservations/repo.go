package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// PaymentPatch is the reservation change derived from one payment event.
type PaymentPatch struct {
	Status           enums.ReservationStatus
	PaymentStatus    enums.PaymentStatus
	ClearHold        bool
	PaymentProvider  *string
	PaymentReference *string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID returns gorm.ErrRecordNotFound when the reservation does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ListBlockingForResource returns enabled reservations that still occupy time.
func (r *Repository) ListBlockingForResource(ctx context.Context, resourceID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Where("enabled = ?", true).
		Where("status IN ?", []enums.ReservationStatus{enums.ReservationStatusPending, enums.ReservationStatusConfirmed}).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListExpiredHolds returns up to limit pending, unpaid reservations whose hold lapsed at or before now.
func (r *Repository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("status = ?", enums.ReservationStatusPending).
		Where("payment_status = ?", enums.PaymentStatusUnpaid).
		Where("hold_expires_at IS NOT NULL AND hold_expires_at <= ?", now.UTC()).
		Order("hold_expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ExpireHold moves the reservation to expired only while it is still an
// unpaid pending hold. It reports whether this call made the transition.
func (r *Repository) ExpireHold(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Where("enabled = ?", true).
		Where("status = ?", enums.ReservationStatusPending).
		Where("payment_status = ?", enums.PaymentStatusUnpaid).
		Where("hold_expires_at IS NOT NULL AND hold_expires_at <= ?", now.UTC()).
		Updates(map[string]any{
			"status":          enums.ReservationStatusExpired,
			"hold_expires_at": nil,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplyPaymentPatch writes the patch if the row still carries expectedVersion.
// A false result means another writer got there first and the caller should reload.
func (r *Repository) ApplyPaymentPatch(ctx context.Context, id uuid.UUID, expectedVersion int, patch PaymentPatch) (bool, error) {
	updates := map[string]any{
		"status":         patch.Status,
		"payment_status": patch.PaymentStatus,
		"version":        gorm.Expr("version + 1"),
	}
	if patch.ClearHold {
		updates["hold_expires_at"] = nil
	}
	if patch.PaymentProvider != nil {
		updates["payment_provider"] = *patch.PaymentProvider
	}
	if patch.PaymentReference != nil {
		updates["payment_reference"] = *patch.PaymentReference
	}

	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
