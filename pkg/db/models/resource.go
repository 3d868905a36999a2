package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

const PublicationStatusPublished = "published"

// Resource is a bookable listing. This service only reads it.
type Resource struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID           uuid.UUID         `gorm:"column:owner_id;type:uuid;not null"`
	Title             string            `gorm:"column:title;not null"`
	BookingType       enums.BookingType `gorm:"column:booking_type;type:booking_type;not null"`
	Enabled           bool              `gorm:"column:enabled;not null;default:true"`
	PublicationStatus string            `gorm:"column:publication_status;not null;default:'draft'"`
	Attributes        json.RawMessage   `gorm:"column:attributes;type:jsonb"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// IsBookable reports whether the resource accepts availability queries.
func (r Resource) IsBookable() bool {
	return r.Enabled && r.PublicationStatus == PublicationStatusPublished
}
