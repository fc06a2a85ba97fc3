package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/airware/buzzard-go/internal/geomodel"
)

// RedisStore is a distributed cache-tile backend, grounded directly on
// the teacher's internal/cache/cache.go: a *redis.Client wrapping a
// URL-parsed connection, JSON-encoded payloads, redis.Nil as the
// canonical miss sentinel, and a bounded TTL on every entry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore parses redisURL (as cache.go's New does) and returns a
// store whose entries expire after ttl.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cachestore: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cachestore: ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(cacheFP geomodel.Footprint) string {
	return "buzzard:tile:" + cacheFP.Key()
}

func (s *RedisStore) Exists(ctx context.Context, cacheFP geomodel.Footprint) (bool, error) {
	n, err := s.client.Exists(ctx, redisKey(cacheFP)).Result()
	if err != nil {
		return false, fmt.Errorf("cachestore: redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Read(ctx context.Context, cacheFP geomodel.Footprint) (Array, error) {
	raw, err := s.client.Get(ctx, redisKey(cacheFP)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Array{}, fmt.Errorf("cachestore: redis miss for %s", cacheFP.Key())
	}
	if err != nil {
		return Array{}, fmt.Errorf("cachestore: redis get: %w", err)
	}
	var arr Array
	if err := json.Unmarshal(raw, &arr); err != nil {
		return Array{}, fmt.Errorf("cachestore: unmarshal %s: %w", cacheFP.Key(), err)
	}
	return arr, nil
}

// WriteAtomic relies on Redis's own atomic SET: a concurrent reader
// either sees the key absent or sees the complete serialized value,
// satisfying the same publication-ordering contract DiskStore provides
// via temp-file-and-rename.
func (s *RedisStore) WriteAtomic(ctx context.Context, cacheFP geomodel.Footprint, arr Array) error {
	raw, err := json.Marshal(arr)
	if err != nil {
		return fmt.Errorf("cachestore: marshal %s: %w", cacheFP.Key(), err)
	}
	if err := s.client.Set(ctx, redisKey(cacheFP), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("cachestore: redis set: %w", err)
	}
	return nil
}
