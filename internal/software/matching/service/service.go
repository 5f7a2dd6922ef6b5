package service

import (
	"context"
	"errors"
	"time"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/general/config"
	"campus-rides/internal/general/logger"
	"campus-rides/internal/general/rabbitmq"
	"campus-rides/internal/ports"
)

// matchingService holds all dependencies required by the matching orchestrator.
//
// The orchestrator is the sole writer of any given session: each handler loads
// the session, applies the state machine, issues side effects, and writes it
// back. There is no in-process lock; concurrent commands for one request are
// tolerated through phase and offer checks, with last writer wins at the store.
type matchingService struct {
	logger   *logger.Logger
	sessions ports.SessionRepository
	events   ports.MatchEventRepository
	bus      ports.CommandBus
	notifier ports.Notifier
	rabbitmq *rabbitmq.Client
	cfg      *config.Config
	windows  ports.MatchingWindows
	now      func() time.Time
}

// NewMatchingService constructs the orchestrator with required dependencies.
func NewMatchingService(
	logger *logger.Logger,
	sessions ports.SessionRepository,
	events ports.MatchEventRepository,
	bus ports.CommandBus,
	notifier ports.Notifier,
	rmq *rabbitmq.Client,
	cfg *config.Config,
) ports.MatchingService {
	return &matchingService{
		logger:   logger,
		sessions: sessions,
		events:   events,
		bus:      bus,
		notifier: notifier,
		rabbitmq: rmq,
		cfg:      cfg,
		windows: ports.MatchingWindows{
			DriverResponse: cfg.DriverResponseWindow(),
			Broadcast:      cfg.BroadcastWindow(),
			MinSessionTTL:  cfg.MinSessionTTL(),
			ForcedExpiry:   cfg.ForcedExpiryTTL(),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// loadSession fetches the session behind a command. A missing session is a
// recovered condition (already completed, expired, or evicted), not an error:
// it is logged as a warning and the command is dropped without retry.
func (service *matchingService) loadSession(ctx context.Context, requestID, action string) (*matching.Session, bool, error) {
	session, err := service.sessions.Find(ctx, requestID)
	if errors.Is(err, ports.ErrSessionNotFound) {
		service.logger.Warn(ctx, action+"_session_missing",
			"No session stored for request; command dropped",
			map[string]any{"request_id": requestID})
		return nil, false, nil
	}
	if err != nil {
		// store unavailable: propagate so the broker redelivers the command
		return nil, false, err
	}
	return session, true, nil
}

// persistSession writes the session back with a TTL tracking the request
// deadline, floored at the configured minimum so it is never zero or negative.
func (service *matchingService) persistSession(ctx context.Context, session *matching.Session) error {
	ttl := session.RequestDeadline.Sub(service.now())
	if ttl < service.windows.MinSessionTTL {
		ttl = service.windows.MinSessionTTL
	}
	return service.sessions.Save(ctx, session, ttl)
}

// appendEvent records a row in the matching audit trail. Audit writes are
// best-effort: a failure is logged and never fails the command.
func (service *matchingService) appendEvent(ctx context.Context, requestID string, eventType matching.EventType, phase matching.Phase, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	event, err := matching.NewEvent(requestID, eventType, phase, data)
	if err != nil {
		service.logger.Error(ctx, "match_event_build_failed", "Failed to build match event", err,
			map[string]any{"request_id": requestID, "event_type": eventType.String()})
		return
	}
	if err := service.events.Append(ctx, event); err != nil {
		service.logger.Error(ctx, "match_event_append_failed", "Failed to append match event", err,
			map[string]any{"request_id": requestID, "event_type": eventType.String()})
	}
}
