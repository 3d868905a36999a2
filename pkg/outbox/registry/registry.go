package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"github.com/angelmondragon/bookings-backend/pkg/outbox"
	"github.com/angelmondragon/bookings-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type to a topic and names the payload
// struct its envelope data decodes into.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	NewPayload    func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// validatable payloads reject rows that decode but cannot be acted on.
type validatable interface {
	Validate() error
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.VoucherTopic == "" {
		return nil, fmt.Errorf("voucher topic is required")
	}
	return newEventRegistry(EventDescriptor{
		EventType:     enums.EventVoucherRequested,
		AggregateType: enums.AggregateReservation,
		Topic:         cfg.VoucherTopic,
		NewPayload:    func() any { return &payloads.VoucherRequestedEvent{} },
	})
}

func newEventRegistry(descs ...EventDescriptor) (*EventRegistry, error) {
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descs))}
	for _, desc := range descs {
		if desc.NewPayload == nil || desc.Topic == "" {
			return nil, fmt.Errorf("descriptor for %s needs a topic and payload", desc.EventType)
		}
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists every distinct destination topic, sorted.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	topics := make([]string, 0, len(r.entries))
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve decodes an outbox row. Every error it returns is non-retryable:
// a malformed row stays malformed on the next attempt.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NonRetryable(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NonRetryable(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NonRetryable(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NonRetryable(err)
	}
	payload := desc.NewPayload()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, NonRetryable(err)
	}
	if v, ok := payload.(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, NonRetryable(fmt.Errorf("invalid %s payload: %w", event.EventType, err))
		}
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return "non-retryable: " + e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable marks err so the publisher dead-letters the row at once.
func NonRetryable(err error) error {
	if err == nil {
		err = errors.New("unspecified failure")
	}
	return &nonRetryableError{err: err}
}

func IsNonRetryable(err error) bool {
	var target *nonRetryableError
	return errors.As(err, &target)
}
