package memorystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when the store has no backing Redis client.
// Callers treat it the same as a miss and degrade gracefully.
var ErrUnavailable = errors.New("memory store unavailable")

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("key not found")

// Store provides short-term memory backed by Redis: per-turn context cache
// entries and per-user session envelopes.
type Store struct {
	client *redis.Client
}

// New creates a new memory store. A nil client is allowed; every operation
// then reports ErrUnavailable so the pipeline can degrade instead of failing.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get retrieves a value by key
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrUnavailable
	}

	// Short timeout for cache operations to prevent blocking the turn
	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	val, err := s.client.Get(opCtx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		log.Debug().
			Err(err).
			Str("key", key).
			Msg("Redis get error - treating as unavailable")
		return "", fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	return val, nil
}

// SetWithTTL stores a value with the given time-to-live
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return ErrUnavailable
	}

	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := s.client.Set(opCtx, key, value, ttl).Err(); err != nil {
		// Cache failure is never fatal to a turn
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to write memory store entry")
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Stored memory entry")

	return nil
}

// Delete removes a key
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return ErrUnavailable
	}

	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := s.client.Del(opCtx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Health checks if the Redis connection is healthy
func (s *Store) Health(ctx context.Context) error {
	if s == nil || s.client == nil {
		return ErrUnavailable
	}

	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.client.Ping(opCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
