package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCredentialStore persists refresh tokens in Redis with TTL-on-write
// semantics. SET overwrites atomically, so the at-most-one-per-identity
// invariant needs no coordination beyond Redis itself.
type RedisCredentialStore struct {
	client *redis.Client
}

// NewRedisCredentialStore wraps an existing Redis client.
func NewRedisCredentialStore(client *redis.Client) *RedisCredentialStore {
	if client == nil {
		panic("redis client is required")
	}
	return &RedisCredentialStore{client: client}
}

// Put stores the refresh token with an expiration equal to ttl.
func (store *RedisCredentialStore) Put(ctx context.Context, identity string, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("credential_store.redis.put: ttl must be greater than zero")
	}
	if err := store.client.Set(ctx, CredentialKey(identity), refreshToken, ttl).Err(); err != nil {
		return fmt.Errorf("credential_store.redis.put: %w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the stored refresh token. A missing or expired key is
// ErrCredentialNotFound; any transport failure is ErrStoreUnavailable.
func (store *RedisCredentialStore) Get(ctx context.Context, identity string) (string, error) {
	value, err := store.client.Get(ctx, CredentialKey(identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("credential_store.redis.get: %w", ErrCredentialNotFound)
		}
		return "", fmt.Errorf("credential_store.redis.get: %w: %w", ErrStoreUnavailable, err)
	}
	return value, nil
}

// Delete removes the stored value; deleting an absent key succeeds.
func (store *RedisCredentialStore) Delete(ctx context.Context, identity string) error {
	if err := store.client.Del(ctx, CredentialKey(identity)).Err(); err != nil {
		return fmt.Errorf("credential_store.redis.delete: %w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
