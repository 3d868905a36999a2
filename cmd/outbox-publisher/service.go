package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
	"github.com/angelmondragon/bookings-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
)

const (
	resultPublished    = "published"
	resultRetry        = "retry"
	resultDeadLettered = "dead_lettered"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	ParkTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxPublishMetrics
}

// Service drains outbox_events to Pub/Sub. A batch is claimed with row locks
// inside one transaction so several publishers can share the table.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	pubsub       pubSubClient
	registry     registryResolver
	dlq          dlqRepository
	metrics      *metrics.OutboxPublishMetrics
	publishers   *publisherCache
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		publishers:   newPublisherCache(factory),
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		now:          time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// inflight tracks one row between handing it to Pub/Sub and settling it.
type inflight struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

// processBatch claims up to batchSize rows. Every message is handed to its
// publisher before any result is awaited so the client can batch them; rows
// are then settled in claim order. A returned error means bookkeeping failed
// and the whole claim is rolled back.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		claimed = len(events) > 0

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		batch := make([]inflight, len(events))
		for i, event := range events {
			batch[i] = s.start(publishCtx, event)
		}
		for i := range batch {
			result, err := s.settle(ctx, publishCtx, tx, &batch[i])
			if err != nil {
				return err
			}
			s.metrics.Inc(string(batch[i].event.EventType), result)
		}
		return nil
	})
	return claimed, err
}

func (s *Service) start(ctx context.Context, event models.OutboxEvent) inflight {
	item := inflight{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		item.err = registry.NonRetryable(err)
		return item
	}
	item.resolved = resolved

	topic := resolved.Descriptor.Topic
	pub := s.publishers.get(topic)
	if pub == nil {
		item.err = registry.NonRetryable(fmt.Errorf("no publisher for topic %s", topic))
		return item
	}
	item.result = pub.Publish(ctx, messageFor(event, resolved))
	if item.result == nil {
		item.err = registry.NonRetryable(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	return item
}

func messageFor(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// settle waits for the publish outcome and records it on the row.
func (s *Service) settle(ctx, publishCtx context.Context, tx *gorm.DB, item *inflight) (string, error) {
	if item.err == nil {
		_, item.err = item.result.Get(publishCtx)
	}
	event := item.event
	logCtx := s.logg.WithFields(ctx, s.eventFields(item))

	switch {
	case item.err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(logCtx, "outbox event published")
		return resultPublished, nil

	case registry.IsNonRetryable(item.err):
		return resultDeadLettered, s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, item.err)

	case event.AttemptCount+1 >= s.maxAttempts:
		cause := fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, item.err)
		return resultDeadLettered, s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts, cause)
	}

	s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"error":         item.err.Error(),
	}), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, item.err); err != nil {
		return "", fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return resultRetry, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        msg,
	}), "outbox event dead-lettered")

	if err := s.dlq.ParkTx(tx, event.DeadLetter(reason, msg, s.now().UTC())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) eventFields(item *inflight) map[string]any {
	event := item.event
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if item.resolved != nil {
		fields["topic"] = item.resolved.Descriptor.Topic
		if id := item.resolved.Envelope.EventID; id != "" {
			fields["event_id"] = id
		}
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
