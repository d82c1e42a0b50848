package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-service/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	ProductCachePrefix   = "product:detail:"
	ProductVersionPrefix = "product:version:"
	DefaultCacheTTL      = 10 * time.Minute
)

// ErrCacheMiss is returned by Get when the product is not cached.
var ErrCacheMiss = errors.New("cache miss")

// ProductCache is the read-through cache in front of the catalog. Readers
// take Version before loading from the catalog and hand it to Set, which
// drops the write if the product was invalidated in between.
type ProductCache interface {
	Get(ctx context.Context, id uint) (*models.Product, error)
	Version(ctx context.Context, id uint) (int64, error)
	Set(ctx context.Context, product *models.Product, version int64) error
	Invalidate(ctx context.Context, ids ...uint) error
}

// RedisProductCache stores product JSON under product:detail:<id>.
type RedisProductCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisProductCache(client *redis.Client, ttl time.Duration) *RedisProductCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisProductCache{
		redis: client,
		ttl:   ttl,
	}
}

// NewRedisClient builds the cache client from a redis:// URL.
func NewRedisClient(redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		zap.L().Warn("Failed to parse REDIS_URL for product cache, falling back to default", zap.Error(err))
		opts = &redis.Options{Addr: "redis:6379", DB: 0}
	}
	return redis.NewClient(opts)
}

func (c *RedisProductCache) key(id uint) string {
	return fmt.Sprintf("%s%d", ProductCachePrefix, id)
}

func (c *RedisProductCache) versionKey(id uint) string {
	return fmt.Sprintf("%s%d", ProductVersionPrefix, id)
}

func (c *RedisProductCache) Get(ctx context.Context, id uint) (*models.Product, error) {
	data, err := c.redis.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		zap.L().Warn("Failed to unmarshal cached product", zap.Error(err), zap.Uint("product_id", id))
		return nil, ErrCacheMiss
	}
	return &product, nil
}

// Version returns the invalidation count for id, 0 if it was never
// invalidated.
func (c *RedisProductCache) Version(ctx context.Context, id uint) (int64, error) {
	v, err := c.redis.Get(ctx, c.versionKey(id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (c *RedisProductCache) Set(ctx context.Context, product *models.Product, version int64) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	versionKey := c.versionKey(product.ID)

	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(product.ID), data, c.ttl)
			return nil
		})
		return err
	}, versionKey)
	if err == redis.TxFailedErr {
		return nil
	}
	return err
}

func (c *RedisProductCache) Invalidate(ctx context.Context, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, c.versionKey(id))
			pipe.Del(ctx, c.key(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate product cache: %w", err)
	}
	return nil
}

// NopProductCache always misses. Used when Redis caching is disabled.
type NopProductCache struct{}

func (NopProductCache) Get(context.Context, uint) (*models.Product, error) { return nil, ErrCacheMiss }
func (NopProductCache) Version(context.Context, uint) (int64, error)       { return 0, nil }
func (NopProductCache) Set(context.Context, *models.Product, int64) error  { return nil }
func (NopProductCache) Invalidate(context.Context, ...uint) error          { return nil }
