package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

type ReservationAuditLog struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID  uuid.UUID         `gorm:"column:reservation_id;type:uuid;not null"`
	Action         enums.AuditAction `gorm:"column:action;not null"`
	Actor          enums.AuditActor  `gorm:"column:actor;not null"`
	PreviousStatus *string           `gorm:"column:previous_status"`
	NextStatus     *string           `gorm:"column:next_status"`
	Details        json.RawMessage   `gorm:"column:details;type:jsonb"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
