// Package session keeps server-side login sessions in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forum/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sess:"

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string    `json:"-"`
	UserID    uint      `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store creates, resolves and destroys sessions.
type Store interface {
	Create(ctx context.Context, userID uint) (*Session, error)
	// Get returns nil, nil when the session does not exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)
	Destroy(ctx context.Context, id string) error
	// Touch extends the session's expiry by the store TTL.
	Touch(ctx context.Context, id string) error
}

// RedisStore stores each session as JSON under sess:<id> with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a session store backed by rdb.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key for a session id.
func Key(id string) string {
	return keyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, userID uint) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	ctx, span := observability.TraceRedisOperation(ctx, "session.create")
	defer span.End()

	b, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, Key(sess.ID), b, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	ctx, span := observability.TraceRedisOperation(ctx, "session.get")
	defer span.End()

	raw, err := s.rdb.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.ID = id
	return &sess, nil
}

func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	ctx, span := observability.TraceRedisOperation(ctx, "session.destroy")
	defer span.End()
	return s.rdb.Del(ctx, Key(id)).Err()
}

func (s *RedisStore) Touch(ctx context.Context, id string) error {
	ctx, span := observability.TraceRedisOperation(ctx, "session.touch")
	defer span.End()
	return s.rdb.Expire(ctx, Key(id), s.ttl).Err()
}
