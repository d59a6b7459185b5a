package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRedis struct {
	mu   sync.Mutex
	vals map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals == nil {
		m.vals = map[string]string{}
	}
	if _, ok := m.vals[key]; ok {
		return false, nil
	}
	m.vals[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals[key] != owner {
		return false, nil
	}
	delete(m.vals, key)
	return true, nil
}

func (m *memoryRedis) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
}

func TestRedisLockIsExclusiveUntilReleased(t *testing.T) {
	store := &memoryRedis{}
	ctx := context.Background()
	a, err := NewRedisLock(store, "of:lock:cron", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "of:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a non-owner release must not drop someone else's lock
	require.NoError(t, b.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := &memoryRedis{}
	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	store.expire("k")
	assert.NoError(t, lock.Release(context.Background()))
}

func TestRedisLockReleaseKeepsSuccessorsLease(t *testing.T) {
	store := &memoryRedis{}
	ctx := context.Background()
	first, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.expire("k")
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx))
	assert.Contains(t, store.vals["k"], "/")
	ok, err = first.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(&memoryRedis{}, "", time.Minute)
	assert.Error(t, err)
}
