package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/ports"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "matching:session:"

// SessionRepo persists matching sessions as JSON values with a TTL. Redis is
// the single source of truth for in-flight sessions; the TTL is the safety
// net for sessions that never reach a terminal phase.
type SessionRepo struct {
	redis *redis.Client
}

// NewSessionRepo constructs a SessionRepo backed by the given Redis client.
func NewSessionRepo(client *redis.Client) ports.SessionRepository {
	return &SessionRepo{redis: client}
}

// Find loads the session for a request id. Returns ports.ErrSessionNotFound
// when no session is stored (already terminal and deleted, or TTL-evicted).
func (repo *SessionRepo) Find(ctx context.Context, requestID string) (*matching.Session, error) {
	val, err := repo.redis.Get(ctx, sessionKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %s: %w", requestID, err)
	}

	var session matching.Session
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", requestID, err)
	}
	return &session, nil
}

// Save persists the session under its request id. A TTL must always be set to
// bound storage growth; callers floor it so it is never zero or negative.
func (repo *SessionRepo) Save(ctx context.Context, session *matching.Session, ttl time.Duration) error {
	if session == nil {
		return errors.New("redisstore: session must not be nil")
	}
	if ttl <= 0 {
		return fmt.Errorf("redisstore: ttl must be positive, got %s", ttl)
	}

	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.RequestID, err)
	}

	if err := repo.redis.Set(ctx, sessionKey(session.RequestID), body, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", session.RequestID, err)
	}
	return nil
}

// Delete removes the session. Deleting an absent key is not an error.
func (repo *SessionRepo) Delete(ctx context.Context, requestID string) error {
	if err := repo.redis.Del(ctx, sessionKey(requestID)).Err(); err != nil {
		return fmt.Errorf("redis del session %s: %w", requestID, err)
	}
	return nil
}

func sessionKey(requestID string) string {
	return sessionKeyPrefix + requestID
}
