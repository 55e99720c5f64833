package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/metrics"
)

// RedisStore is a Store backed by Redis string keys
type RedisStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(redisURL string, logger zerolog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Str("redis_addr", opt.Addr).Msg("Connected to Redis successfully")

	return NewRedisStoreFromClient(client, "lbscout:", logger), nil
}

// NewRedisStoreFromClient wraps an existing client. Keys are stored under prefix.
func NewRedisStoreFromClient(client *redis.Client, prefix string, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redis_store").Logger(),
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheOperation("redis", "get", "miss")
			return "", false, nil
		}
		metrics.RecordCacheOperation("redis", "get", "failed")
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	metrics.RecordCacheOperation("redis", "get", "success")
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		metrics.RecordCacheOperation("redis", "set", "failed")
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	metrics.RecordCacheOperation("redis", "set", "success")
	r.logger.Debug().Str("key", key).Int("bytes", len(value)).Msg("Stored value")
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		metrics.RecordCacheOperation("redis", "remove", "failed")
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}

	metrics.RecordCacheOperation("redis", "remove", "success")
	r.logger.Debug().Str("key", key).Msg("Removed value")
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
