package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/orderflow/pkg/redis"
)

// Manager claims caller-supplied keys with Redis SETNX so a retried request
// cannot run the same side effect twice while the claim is alive.
// Keys follow the `of:idempotency:<scope>:<key>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that holds claims for ttl.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim returns true when the key was free and is now held by the caller.
func (m *Manager) Claim(ctx context.Context, scope, key string) (bool, error) {
	redisKey, err := m.key(scope, key)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, redisKey, "pending", m.ttl)
}

// Release drops a claim so the key can be used again, e.g. after a failed attempt.
func (m *Manager) Release(ctx context.Context, scope, key string) error {
	redisKey, err := m.key(scope, key)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, redisKey)
}

func (m *Manager) key(scope, key string) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return "", errors.New("scope is required")
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("idempotency key is required")
	}
	if len(key) > 255 {
		return "", fmt.Errorf("idempotency key exceeds 255 characters")
	}
	return m.store.IdempotencyKey(scope, key), nil
}
