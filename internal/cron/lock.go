package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultLockTTL bounds how long a crashed worker can block later ticks.
const defaultLockTTL = 10 * time.Minute

// Lock serializes cron cycles across worker instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a SETNX lock. The stored value names the instance and cycle
// that own it, so a release after TTL expiry cannot free another owner's lock.
type RedisLock struct {
	store    lockStore
	key      string
	ttl      time.Duration
	instance string
	token    string
}

func NewRedisLock(store lockStore, key, instanceID string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl, instance: instanceID}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.instance + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.CompareAndDelete(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
