// Package cache is the redis-backed store behind the MSRP cache
// gateway. Entries expire after a fixed TTL enforced here, not by the
// engine; concurrent writers to the same key are last-write-wins,
// which is fine because entries are idempotent recomputations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"snaplist/internal/pricing"
)

// TTL is the fixed entry lifetime.
const TTL = 30 * 24 * time.Hour

const keyPrefix = "snaplist:msrp:"

// RedisStore implements pricing.CacheStore.
type RedisStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisStore connects to redis at addr.
func NewRedisStore(addr, password string, db int, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		log: logger,
	}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Get returns the cached entry, or nil on a miss. An entry that no
// longer unmarshals is treated as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*pricing.CacheEntry, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var entry pricing.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return nil, nil
	}
	return &entry, nil
}

// Set stores an entry under the fixed TTL.
func (s *RedisStore) Set(ctx context.Context, key string, entry *pricing.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, raw, TTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error { return s.rdb.Close() }
