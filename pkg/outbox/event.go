package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// EnvelopeVersion is the only envelope layout consumers understand.
const EnvelopeVersion = 1

// DomainEvent is what producers hand to Emit. Data is marshaled to JSON and
// wrapped in a PayloadEnvelope.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	var errs error
	if !e.EventType.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("unknown event type %q", e.EventType))
	}
	if !e.AggregateType.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("unknown aggregate type %q", e.AggregateType))
	}
	if e.AggregateID == uuid.Nil {
		errs = multierr.Append(errs, errors.New("aggregate id is required"))
	}
	return errs
}

// ActorRef names the component or user that caused the event.
type ActorRef struct {
	Subject string `json:"subject"`
	Role    string `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// verbatim as the Pub/Sub message body. EventID is the consumer dedupe key.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	return PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}

// DecodeEnvelope parses a stored or delivered payload and rejects envelopes
// that cannot be deduplicated or were written by a newer producer.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case env.EventID == "":
		return PayloadEnvelope{}, errors.New("envelope has no event id")
	case env.Version != EnvelopeVersion:
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	case isEmptyJSON(env.Data):
		return PayloadEnvelope{}, errors.New("envelope has no data")
	}
	return env, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeData unmarshals the envelope data into v.
func (e PayloadEnvelope) DecodeData(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode event %s data: %w", e.EventID, err)
	}
	return nil
}
