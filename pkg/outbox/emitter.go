package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

type inserter interface {
	Insert(tx *gorm.DB, event models.OutboxEvent) error
}

// Service writes domain events to the outbox table.
type Service struct {
	repo inserter
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo inserter, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit appends event inside tx, so it becomes visible to the publisher only
// if the caller's transaction commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("outbox emit needs a transaction")
	}
	if err := event.validate(); err != nil {
		return fmt.Errorf("invalid outbox event: %w", err)
	}

	envelope, err := newEnvelope(event, s.now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	err = s.repo.Insert(tx, models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", event.EventType, err)
	}

	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}
