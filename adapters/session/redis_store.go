package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an idle session survives in Redis. Every Save
// refreshes it.
const DefaultTTL = 24 * time.Hour

// RedisStore is a Redis implementation of ports.SessionStore.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis session store. ttl <= 0 selects
// DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) ports.SessionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: "herald:session:",
		ttl:    ttl,
	}
}

// Load returns the session for sid, or the zero-value default when the
// key does not exist.
func (s *RedisStore) Load(ctx context.Context, sid string) (core.Session, error) {
	raw, err := s.client.Get(ctx, s.prefix+sid).Result()
	if errors.Is(err, redis.Nil) {
		return core.Session{}, nil
	}
	if err != nil {
		return core.Session{}, core.NewFault(core.FaultUpstream, "failed to load session", err)
	}

	var session core.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return core.Session{}, core.NewFault(core.FaultUpstream, "failed to decode session", err)
	}
	return session, nil
}

// Save persists the session under sid and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, sid string, session core.Session) error {
	blob, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+sid, blob, s.ttl).Err(); err != nil {
		return core.NewFault(core.FaultUpstream, "failed to save session", err)
	}
	return nil
}

// Destroy removes the session key.
func (s *RedisStore) Destroy(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, s.prefix+sid).Err(); err != nil {
		return core.NewFault(core.FaultUpstream, "failed to destroy session", err)
	}
	return nil
}
