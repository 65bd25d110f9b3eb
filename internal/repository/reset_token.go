package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetTokenPrefix namespaces password reset tokens in Redis.
const ResetTokenPrefix = "forgot-password:"

// ResetTokenStore keeps single-use password reset tokens that map to a user id.
type ResetTokenStore interface {
	Save(ctx context.Context, token string, userID uint, ttl time.Duration) error
	// Lookup reports found=false when the token never existed or has expired.
	Lookup(ctx context.Context, token string) (userID uint, found bool, err error)
	// Claim removes the token and returns the user it named. Of several concurrent
	// claims on one token at most one reports found=true.
	Claim(ctx context.Context, token string) (userID uint, found bool, err error)
}

type redisResetTokenStore struct {
	rdb *redis.Client
}

// NewResetTokenStore returns a Redis-backed ResetTokenStore.
func NewResetTokenStore(rdb *redis.Client) ResetTokenStore {
	return &redisResetTokenStore{rdb: rdb}
}

// ResetTokenKey returns the Redis key holding token.
func ResetTokenKey(token string) string {
	return ResetTokenPrefix + token
}

func (s *redisResetTokenStore) Save(ctx context.Context, token string, userID uint, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, ResetTokenKey(token), strconv.FormatUint(uint64(userID), 10), ttl).Err(); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func (s *redisResetTokenStore) Lookup(ctx context.Context, token string) (uint, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	return parseTokenOwner(s.rdb.Get(ctx, ResetTokenKey(token)).Result())
}

func (s *redisResetTokenStore) Claim(ctx context.Context, token string) (uint, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	return parseTokenOwner(s.rdb.GetDel(ctx, ResetTokenKey(token)).Result())
}

func parseTokenOwner(raw string, err error) (uint, bool, error) {
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load reset token: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		// a value we cannot parse cannot name a user
		return 0, false, nil
	}
	return uint(id), true, nil
}
