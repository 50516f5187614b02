package cart

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acecharity/raffle-backend/pkg/types"
)

const (
	defaultCartTTL = 24 * time.Hour
	tokenBytes     = 18
)

// ErrNotFound is returned when no cart exists for a token.
var ErrNotFound = errors.New("cart not found")

type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartSessionKey(token string) string
}

// SessionStore keeps pre-checkout cart snapshots in Redis, keyed by an opaque
// browser token. Carts expire on their own; nothing sweeps them.
type SessionStore struct {
	store redisStore
	ttl   time.Duration
}

// SessionStoreParams configure the cart session store.
type SessionStoreParams struct {
	Store redisStore
	TTL   time.Duration
}

// NewSessionStore builds a cart session store.
func NewSessionStore(params SessionStoreParams) (*SessionStore, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	return &SessionStore{store: params.Store, ttl: ttl}, nil
}

// NewToken mints an opaque cart token for a new browser session.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating cart token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Save writes the cart snapshot and restarts its TTL.
func (s *SessionStore) Save(ctx context.Context, token string, cart types.EnvelopeCart) error {
	if token == "" {
		return fmt.Errorf("cart token required")
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	return s.store.Set(ctx, s.store.CartSessionKey(token), string(payload), s.ttl)
}

// Load returns the cart snapshot for a token, or ErrNotFound.
func (s *SessionStore) Load(ctx context.Context, token string) (types.EnvelopeCart, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	raw, err := s.store.Get(ctx, s.store.CartSessionKey(token))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading cart: %w", err)
	}
	var cart types.EnvelopeCart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	return cart, nil
}

// Delete drops the snapshot, typically once the cart is bound to an order.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Del(ctx, s.store.CartSessionKey(token))
}
