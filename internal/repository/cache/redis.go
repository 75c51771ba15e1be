package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pissang/little-big-city/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

var _ TileCache = (*RedisCache)(nil)

func (c *RedisCache) keyFor(k TileCacheKey) string {
	return fmt.Sprintf("tile:%d:%d:%d", k.Z, k.X, k.Y)
}

func (c *RedisCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		metrics.RedisErrors.WithLabelValues("get").Inc()
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}()

	if err := c.client.Set(ctx, c.keyFor(k), []byte(v), c.ttl).Err(); err != nil {
		metrics.RedisErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
