package models

import (
	"time"

	"github.com/google/uuid"
)

// Voucher is the proof-of-booking issued for a paid reservation. At most one
// enabled voucher exists per reservation.
type Voucher struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null"`
	VoucherCode   string    `gorm:"column:voucher_code;not null;uniqueIndex"`
	VoucherURL    string    `gorm:"column:voucher_url;not null"`
	QRPayload     string    `gorm:"column:qr_payload;not null"`
	Enabled       bool      `gorm:"column:enabled;not null;default:true"`
	IssuedAt      time.Time `gorm:"column:issued_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
