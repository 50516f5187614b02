package lease

import (
	"context"
	"fmt"
	"time"
)

const defaultTTL = 24 * time.Hour

// redisStore defines the operations the lease manager needs from Redis.
type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LeaseKey(orderNumber int64) string
}

// Manager tracks checkout activity leases. A live lease means a customer
// touched the order recently; the abandonment sweeper treats an expired lease
// as the signal to abandon a started order.
type Manager struct {
	store redisStore
	ttl   time.Duration
}

// ManagerParams configure the lease manager.
type ManagerParams struct {
	Store redisStore
	TTL   time.Duration
}

// NewManager builds a lease manager.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{store: params.Store, ttl: ttl}, nil
}

// Touch writes or refreshes the lease for the full TTL.
func (m *Manager) Touch(ctx context.Context, orderNumber int64) error {
	return m.store.Set(ctx, m.store.LeaseKey(orderNumber), "1", m.ttl)
}

// Alive reports whether the lease still exists.
func (m *Manager) Alive(ctx context.Context, orderNumber int64) (bool, error) {
	return m.store.Exists(ctx, m.store.LeaseKey(orderNumber))
}

// Clear drops the lease, typically once the order leaves the started state.
func (m *Manager) Clear(ctx context.Context, orderNumber int64) error {
	return m.store.Del(ctx, m.store.LeaseKey(orderNumber))
}
