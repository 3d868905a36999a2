package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bookings-backend/pkg/redis"
)

var (
	// ErrAlreadyProcessed means a previous delivery finished the event.
	ErrAlreadyProcessed = errors.New("event already processed")
	// ErrInProgress means another delivery holds the lease right now.
	ErrInProgress = errors.New("event is being processed")
)

const (
	doneMarker      = "done"
	defaultLeaseTTL = 5 * time.Minute
)

// Manager guards event handlers per consumer. A delivery first leases
// bk:idempotency:evt:processed:<consumer>:<event_id> with a unique token,
// then flips it to "done" on success or releases it on failure. A crashed
// worker's lease expires so the event is not lost.
type Manager struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	leaseTTL time.Duration
	token    func() string
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store:    store,
		ttl:      ttl,
		leaseTTL: defaultLeaseTTL,
		token:    func() string { return uuid.NewString() },
	}, nil
}

// Process runs fn at most once to completion per consumer and event.
func (m *Manager) Process(ctx context.Context, consumer, eventID string, fn func(context.Context) error) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}

	lease := m.token()
	acquired, err := m.store.SetNX(ctx, key, lease, m.leaseTTL)
	if err != nil {
		return fmt.Errorf("idempotency lease: %w", err)
	}
	if !acquired {
		return m.holderState(ctx, key)
	}

	if err := fn(ctx); err != nil {
		if _, relErr := m.store.CompareAndDelete(context.WithoutCancel(ctx), key, lease); relErr != nil {
			return errors.Join(err, fmt.Errorf("release idempotency lease: %w", relErr))
		}
		return err
	}

	settled, err := m.store.CompareAndSet(context.WithoutCancel(ctx), key, lease, doneMarker, m.ttl)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if !settled {
		// The lease expired mid-run; the work is done but a redelivery may repeat it.
		return fmt.Errorf("mark event processed: lease on %s lost", key)
	}
	return nil
}

func (m *Manager) holderState(ctx context.Context, key string) error {
	value, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Released between SETNX and GET; let the redelivery retry.
		return ErrInProgress
	case err != nil:
		return fmt.Errorf("idempotency lookup: %w", err)
	case value == doneMarker:
		return ErrAlreadyProcessed
	default:
		return ErrInProgress
	}
}

func (m *Manager) processedKey(consumer, eventID string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID), nil
}
