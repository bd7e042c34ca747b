package store

import (
	"context"
	"fmt"
	"time"

	"github.com/helios-labs/walletgate/ports"
	"github.com/redis/go-redis/v9"
)

// RedisKeyStore is a Redis implementation of the KeyStore interface. The
// prefix keeps consumed nonces and revoked refresh tokens in separate
// keyspaces on a shared client.
type RedisKeyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisKeyStore creates a new Redis key store
func NewRedisKeyStore(client *redis.Client, prefix string) ports.KeyStore {
	return &RedisKeyStore{
		client: client,
		prefix: prefix,
	}
}

// Invalidate marks an ID as used/revoked in Redis until expiry
func (s *RedisKeyStore) Invalidate(ctx context.Context, id string, expiry time.Duration) error {
	key := s.prefix + id

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %q: %w", id, err)
	}

	return nil
}

// IsInvalidated checks whether an ID has been used/revoked
func (s *RedisKeyStore) IsInvalidated(ctx context.Context, id string) (bool, error) {
	key := s.prefix + id

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %q: %w", id, err)
	}

	return val > 0, nil
}
