package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleVersion is returned by Set when the cart was invalidated after the version was read.
	ErrStaleVersion = errors.New("cart cache version changed")
)

// Cache holds a user's cart lines. Prices are never cached since cart totals follow the live
// catalog.
//
// Every Invalidate bumps a per-user version. A reader takes Version before loading the store and
// passes it to Set, which refuses to write once the version has moved on, so lines loaded before
// a mutation are never cached after it.
type Cache interface {
	Get(ctx context.Context, userID string) ([]domain.CartLine, error)
	Version(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, version int64, lines []domain.CartLine) error
	Invalidate(ctx context.Context, userID string) error
}

type RedisCache struct {
	client     *redis.Client
	baseTTL    time.Duration
	versionTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
		// outlives any cached entry, so an expired version can only admit readers that started
		// after the last invalidation
		versionTTL: 24 * time.Hour,
	}
}

func (c *RedisCache) Get(ctx context.Context, userID string) ([]domain.CartLine, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart lines: %w", err)
	}

	return lines, nil
}

func (c *RedisCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version: %w", err)
	}
	return v, nil
}

// Set stores lines only while the user's version still equals version. The check and the write
// run under WATCH so an Invalidate in between aborts the write.
func (c *RedisCache) Set(ctx context.Context, userID string, version int64, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart lines: %w", err)
	}

	// jitter spreads expiry of carts cached at the same moment
	ttl := c.baseTTL + time.Duration(rand.Intn(5))*time.Minute

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey(userID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrStaleVersion
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(userID), data, ttl)
			return nil
		})
		return err
	}, versionKey(userID))
	if errors.Is(err, ErrStaleVersion) || errors.Is(err, redis.TxFailedErr) {
		return ErrStaleVersion
	}
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Invalidate bumps the user's version and drops the cached lines in one transaction.
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), c.versionTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}

	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

func versionKey(userID string) string {
	return "cart:" + userID + ":version"
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]domain.CartLine, error)      { return nil, ErrCacheMiss }
func (noopCache) Version(context.Context, string) (int64, error)              { return 0, nil }
func (noopCache) Set(context.Context, string, int64, []domain.CartLine) error { return nil }
func (noopCache) Invalidate(context.Context, string) error                    { return nil }
