package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// Reservation holds both interval encodings; which one applies depends on the
// resource booking type. Date and time fields keep the caller-supplied strings.
type Reservation struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ResourceID       uuid.UUID               `gorm:"column:resource_id;type:uuid;not null"`
	OwnerID          uuid.UUID               `gorm:"column:owner_id;type:uuid;not null"`
	GuestID          *uuid.UUID              `gorm:"column:guest_id;type:uuid"`
	Status           enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus     `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	HoldExpiresAt    *time.Time              `gorm:"column:hold_expires_at"`
	StartDateTime    *string                 `gorm:"column:start_date_time"`
	EndDateTime      *string                 `gorm:"column:end_date_time"`
	CheckInDate      *string                 `gorm:"column:check_in_date"`
	CheckOutDate     *string                 `gorm:"column:check_out_date"`
	Enabled          bool                    `gorm:"column:enabled;not null;default:true"`
	PaymentProvider  *string                 `gorm:"column:payment_provider"`
	PaymentReference *string                 `gorm:"column:payment_reference"`
	Version          int                     `gorm:"column:version;not null;default:1"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
