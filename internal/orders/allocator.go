package orders

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/logger"
)

const sequenceRowID = 1

// ErrSequenceMissing reports that the counter row was never seeded. The
// fallback allocator keys off this error specifically: any other failure is
// transient and must not silently switch number sources.
var ErrSequenceMissing = errors.New("order number sequence row missing")

// SequenceAllocator allocates order numbers from a single-row counter table.
// The increment-and-return runs as one statement, so concurrent transactions
// serialize on the row lock and every caller sees a unique value.
type SequenceAllocator struct{}

// NewSequenceAllocator builds the Postgres-backed allocator.
func NewSequenceAllocator() *SequenceAllocator {
	return &SequenceAllocator{}
}

func (a *SequenceAllocator) Next(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required for order number allocation")
	}
	var value int64
	err := tx.WithContext(ctx).
		Raw("UPDATE order_number_sequences SET value = value + 1 WHERE id = ? RETURNING value", sequenceRowID).
		Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("allocating order number: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("row %d: %w", sequenceRowID, ErrSequenceMissing)
	}
	return value, nil
}

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(name string) string
}

// RedisAllocator allocates order numbers from a Redis counter. It survives a
// database failover but loses monotonicity if Redis is restored from an old
// snapshot; prefer SequenceAllocator wherever Postgres is available.
type RedisAllocator struct {
	store counterStore
	name  string
}

// NewRedisAllocator builds the Redis-backed fallback allocator.
func NewRedisAllocator(store counterStore, name string) (*RedisAllocator, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if name == "" {
		name = "order_number"
	}
	return &RedisAllocator{store: store, name: name}, nil
}

func (a *RedisAllocator) Next(ctx context.Context, _ *gorm.DB) (int64, error) {
	value, err := a.store.Incr(ctx, a.store.CounterKey(a.name))
	if err != nil {
		return 0, fmt.Errorf("allocating order number: %w", err)
	}
	return value, nil
}

// FallbackAllocator serves numbers from the primary allocator and switches to
// the fallback only when the primary reports the sequence row missing, so a
// half-migrated database still sells tickets instead of failing every
// checkout.
type FallbackAllocator struct {
	primary  NumberAllocator
	fallback NumberAllocator
	logg     *logger.Logger
}

// NewFallbackAllocator builds a primary-with-fallback allocator.
func NewFallbackAllocator(primary, fallback NumberAllocator, logg *logger.Logger) (*FallbackAllocator, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary allocator required")
	}
	if fallback == nil {
		return nil, fmt.Errorf("fallback allocator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &FallbackAllocator{primary: primary, fallback: fallback, logg: logg}, nil
}

func (a *FallbackAllocator) Next(ctx context.Context, tx *gorm.DB) (int64, error) {
	value, err := a.primary.Next(ctx, tx)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrSequenceMissing) {
		return 0, err
	}
	a.logg.Warn(ctx, "order number sequence missing, falling back to redis counter")
	return a.fallback.Next(ctx, tx)
}
