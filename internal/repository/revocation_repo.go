package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationRepository records session token ids that were logged out
type RevocationRepository interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisRevocationRepository struct {
	rdb *redis.Client
}

// NewRedisRevocationRepository stores revoked token ids in redis until they would have expired
func NewRedisRevocationRepository(rdb *redis.Client) RevocationRepository {
	return &redisRevocationRepository{rdb: rdb}
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("session_revoked_%s", tokenID)
}

func (r *redisRevocationRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired, nothing to remember
	}
	if err := r.rdb.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *redisRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.rdb.Get(ctx, revokedKey(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return true, nil
}

type nopRevocationRepository struct{}

// NewNopRevocationRepository is used when redis is not configured; logout then only clears the cookie.
func NewNopRevocationRepository() RevocationRepository {
	return nopRevocationRepository{}
}

func (nopRevocationRepository) Revoke(context.Context, string, time.Duration) error { return nil }

func (nopRevocationRepository) IsRevoked(context.Context, string) (bool, error) { return false, nil }
