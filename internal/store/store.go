// Package store persists conversion artifacts in Redis under keyspace keys.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fabseal/fabseal/internal/keyspace"
	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is absent, usually because it expired.
var ErrNotFound = errors.New("artifact not found")

// Store reads and writes artifacts with per-category expirations.
type Store struct {
	rdb    redis.UniversalClient
	keys   keyspace.Keyspace
	ttl    keyspace.Expirations
	logger *slog.Logger
}

// New creates a Store.
func New(rdb redis.UniversalClient, keys keyspace.Keyspace, ttl keyspace.Expirations, logger *slog.Logger) *Store {
	return &Store{
		rdb:    rdb,
		keys:   keys,
		ttl:    ttl,
		logger: logger,
	}
}

// Put writes data under (c, id) with the category's TTL.
func (s *Store) Put(ctx context.Context, c keyspace.Category, id requestid.ID, data []byte) error {
	key := s.keys.Key(c, id)
	ttl := s.ttl.TTL(c)
	if ttl <= 0 {
		return fmt.Errorf("no expiration configured for category %q", c)
	}

	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	s.logger.Debug("Artifact stored",
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("ttl", ttl),
	)
	return nil
}

// Get returns the bytes stored under (c, id), or ErrNotFound.
func (s *Store) Get(ctx context.Context, c keyspace.Category, id requestid.ID) ([]byte, error) {
	key := s.keys.Key(c, id)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return data, nil
}

// Keys returns the keyspace used by the store.
func (s *Store) Keys() keyspace.Keyspace {
	return s.keys
}
