package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCounterStore struct {
	counters map[string]int64
	lastKey  string
}

func (f *fakeCounterStore) Incr(_ context.Context, key string) (int64, error) {
	if f.counters == nil {
		f.counters = map[string]int64{}
	}
	f.counters[key]++
	f.lastKey = key
	return f.counters[key], nil
}

func (f *fakeCounterStore) CounterKey(name string) string {
	return "test:counter:" + name
}

func TestSequenceAllocatorRequiresTransaction(t *testing.T) {
	allocator := NewSequenceAllocator()

	_, err := allocator.Next(context.Background(), nil)
	require.Error(t, err)
}

func TestSequenceAllocatorIncrements(t *testing.T) {
	db := setupOrdersTestDB(t)
	require.NoError(t, db.Exec(
		"CREATE TABLE order_number_sequences (id INTEGER PRIMARY KEY, value INTEGER NOT NULL)").Error)
	require.NoError(t, db.Exec(
		"INSERT INTO order_number_sequences (id, value) VALUES (1, 1000)").Error)

	allocator := NewSequenceAllocator()
	ctx := context.Background()

	first, err := allocator.Next(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), first)

	second, err := allocator.Next(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1002), second)
}

func TestSequenceAllocatorMissingRow(t *testing.T) {
	db := setupOrdersTestDB(t)
	require.NoError(t, db.Exec(
		"CREATE TABLE order_number_sequences (id INTEGER PRIMARY KEY, value INTEGER NOT NULL)").Error)

	allocator := NewSequenceAllocator()
	_, err := allocator.Next(context.Background(), db)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSequenceMissing))
}

type stubAllocator struct {
	value int64
	err   error
	calls int
}

func (s *stubAllocator) Next(context.Context, *gorm.DB) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.value, nil
}

func TestFallbackAllocatorPrefersPrimary(t *testing.T) {
	primary := &stubAllocator{value: 2001}
	fallback := &stubAllocator{value: 9001}
	allocator, err := NewFallbackAllocator(primary, fallback, testLogger())
	require.NoError(t, err)

	value, err := allocator.Next(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2001), value)
	assert.Zero(t, fallback.calls)
}

func TestFallbackAllocatorSwitchesWhenSequenceMissing(t *testing.T) {
	primary := &stubAllocator{err: ErrSequenceMissing}
	fallback := &stubAllocator{value: 9001}
	allocator, err := NewFallbackAllocator(primary, fallback, testLogger())
	require.NoError(t, err)

	value, err := allocator.Next(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9001), value)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackAllocatorPropagatesTransientErrors(t *testing.T) {
	transient := errors.New("connection reset")
	primary := &stubAllocator{err: transient}
	fallback := &stubAllocator{value: 9001}
	allocator, err := NewFallbackAllocator(primary, fallback, testLogger())
	require.NoError(t, err)

	_, err = allocator.Next(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, transient))
	assert.Zero(t, fallback.calls)
}

func TestRedisAllocatorIncrements(t *testing.T) {
	store := &fakeCounterStore{}
	allocator, err := NewRedisAllocator(store, "order_number")
	require.NoError(t, err)

	ctx := context.Background()
	first, err := allocator.Next(ctx, nil)
	require.NoError(t, err)
	second, err := allocator.Next(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, "test:counter:order_number", store.lastKey)
}
