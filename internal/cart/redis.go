package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-core/internal/redisx"
)

// RedisStore keeps each cart as one JSON document under the session key.
type RedisStore struct {
	Redis *redis.Client
	Log   *zap.Logger
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.LastActive = time.Now().UTC()
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *RedisStore) SetItemQuantity(ctx context.Context, sessionID string, item Item) ([]Item, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) { c.upsertItem(item) })
}

func (s *RedisStore) RemoveItem(ctx context.Context, sessionID, productID string) ([]Item, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) { c.removeItem(productID) })
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	err := s.Redis.Del(ctx, cartKey(sessionID)).Err()
	if err != nil {
		return s.failed("clear cart", err)
	}
	return nil
}

func (s *RedisStore) mutate(ctx context.Context, sessionID string, fn func(*Cart)) ([]Item, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	fn(c)
	c.LastActive = time.Now().UTC()
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c.Items, nil
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*Cart, error) {
	raw, err := s.Redis.Get(ctx, cartKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return &Cart{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, s.failed("load cart", err)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, s.failed("decode cart", err)
	}
	c.SessionID = sessionID
	return &c, nil
}

func (s *RedisStore) save(ctx context.Context, c *Cart) error {
	b, err := json.Marshal(c)
	if err != nil {
		return s.failed("encode cart", err)
	}
	// TTL 0: no automatic expiry at the data layer.
	if err := s.Redis.Set(ctx, cartKey(c.SessionID), b, 0).Err(); err != nil {
		return s.failed("save cart", err)
	}
	return nil
}

func (s *RedisStore) failed(op string, err error) error {
	if s.Log != nil {
		s.Log.Error("cart store failure", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%w: %s", ErrPersistence, op)
}

func cartKey(sessionID string) string { return fmt.Sprintf(redisx.KeyCart, sessionID) }
