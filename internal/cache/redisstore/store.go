// Package redisstore provides a Redis-backed CacheStore for sharing
// crawl results across processes.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config captures the Redis connection parameters.
type Config struct {
	// URL is a redis:// connection string.
	URL string `mapstructure:"url"`
}

// Store persists cache payloads in Redis. Entries are written without a
// Redis-side expiry: freshness is computed by the cache layer from the
// payload's creation timestamp, and stale entries are simply
// overwritten.
type Store struct {
	client redis.UniversalClient
}

// New dials Redis using the configured URL.
func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Get fetches the payload for key. redis.Nil maps to an absent entry.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return raw, true, nil
}

// Set overwrites the payload for key.
func (s *Store) Set(ctx context.Context, key string, payload []byte) error {
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping verifies connectivity, used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
