package ports

import (
	"context"
	"errors"
	"time"

	"campus-rides/internal/domain/matching"
)

// ErrSessionNotFound is returned by SessionRepository.Find when no session is
// stored under the request id (already terminal and deleted, or TTL-evicted).
var ErrSessionNotFound = errors.New("matching session not found")

// SessionRepository is the durable TTL-bound store holding the authoritative
// session state, keyed by request id. Save must always set a TTL to bound
// storage growth.
type SessionRepository interface {
	Find(ctx context.Context, requestID string) (*matching.Session, error)
	Save(ctx context.Context, session *matching.Session, ttl time.Duration) error
	Delete(ctx context.Context, requestID string) error
}

// MatchEventRepository appends rows to the append-only matching audit trail.
type MatchEventRepository interface {
	Append(ctx context.Context, event *matching.Event) error
}
