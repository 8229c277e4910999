// Package session tracks refresh-token revocation. Access tokens stay
// stateless; only the refresh flow touches this store, and it fails
// closed when the store is unreachable.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable signals that revocation state could not be read or
// written; callers must deny the operation.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store records revoked refresh-token ids. The record is minimal: the jti
// with a TTL covering the token's remaining life, never the token itself.
type Store interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revokedKeyPrefix = "session:revoked:"

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Redis-backed revocation store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired; signature validation rejects it regardless.
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *redisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	res, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return res > 0, nil
}
