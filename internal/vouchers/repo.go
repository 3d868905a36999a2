package vouchers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
)

// Repository persists vouchers.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindEnabledByReservation returns nil, nil when the reservation has no active voucher.
func (r *Repository) FindEnabledByReservation(ctx context.Context, reservationID uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("reservation_id = ? AND enabled = ?", reservationID, true).
		First(&voucher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *Repository) Create(ctx context.Context, voucher *models.Voucher) error {
	if voucher.ID == uuid.Nil {
		voucher.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(voucher).Error
}
