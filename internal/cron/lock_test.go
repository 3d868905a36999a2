package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	delErr error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.delErr != nil {
		return false, m.delErr
	}
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockExcludesSecondOwner(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	first, err := NewRedisLock(store, "bk:lock:cron-worker:prod", "cron-a", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "bk:lock:cron-worker:prod", "cron-b", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls["bk:lock:cron-worker:prod"])
	assert.True(t, strings.HasPrefix(store.values["bk:lock:cron-worker:prod"], "cron-a/"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Never acquired, so nothing to release.
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "bk:lock:cron-worker:prod")

	require.NoError(t, first.Release(ctx))
	assert.NotContains(t, store.values, "bk:lock:cron-worker:prod")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseAfterExpiryKeepsNewOwner(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "bk:lock:cron-worker:prod", "cron-a", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.values["bk:lock:cron-worker:prod"] = "cron-b/other"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "cron-b/other", store.values["bk:lock:cron-worker:prod"])
}

func TestRedisLockReleaseError(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "bk:lock:cron-worker:prod", "cron-a", time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(ctx)
	require.NoError(t, err)

	store.delErr = errors.New("connection reset")
	assert.ErrorContains(t, lock.Release(ctx), "connection reset")
	// The token is dropped either way; the TTL cleans up.
	assert.NoError(t, lock.Release(ctx))
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "key", "cron-a", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", "cron-a", time.Minute)
	require.Error(t, err)
}
