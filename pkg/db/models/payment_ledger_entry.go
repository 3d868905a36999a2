package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// PaymentLedgerEntry records one processed provider event. Rows are never updated.
type PaymentLedgerEntry struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID     uuid.UUID             `gorm:"column:reservation_id;type:uuid;not null"`
	Provider          enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderEventID   string                `gorm:"column:provider_event_id;not null;uniqueIndex"`
	ProviderPaymentID *string               `gorm:"column:provider_payment_id"`
	EventType         string                `gorm:"column:event_type;not null"`
	Amount            decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null;default:0"`
	Currency          string                `gorm:"column:currency;not null;default:''"`
	Status            enums.LedgerStatus    `gorm:"column:status;type:ledger_status;not null"`
	RawPayload        string                `gorm:"column:raw_payload;not null"`
	ProcessedAt       time.Time             `gorm:"column:processed_at;not null"`
}
