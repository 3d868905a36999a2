package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// OutboxEvent is a row written in the same transaction as the state change it
// announces. The publisher sets PublishedAt once Pub/Sub acknowledges it.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// DeadLetter copies the row into a DLQ entry.
func (e OutboxEvent) DeadLetter(reason enums.OutboxDLQErrorReason, message string, failedAt time.Time) OutboxDLQ {
	return OutboxDLQ{
		EventID:       e.ID,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       e.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  e.AttemptCount,
		FailedAt:      failedAt,
	}
}

// OutboxDLQ holds events the publisher stopped retrying. Rows are kept for
// manual replay; nothing deletes them automatically.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage  *string                    `gorm:"column:error_message"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }
