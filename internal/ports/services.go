package ports

import (
	"context"
	"time"

	"campus-rides/internal/general/contracts"
)

// CommandBus publishes matching commands, either for immediate delivery or
// through one of the two fixed-delay queues. Delayed delivery is the only
// timeout mechanism: it survives process restarts because the broker, not an
// in-process timer, re-delivers the command.
type CommandBus interface {
	// Publish delivers cmd to the command queue immediately.
	Publish(ctx context.Context, cmd contracts.MatchingCommand) error
	// PublishDriverTimeout arms the driver-response delay queue with cmd.
	PublishDriverTimeout(ctx context.Context, cmd contracts.MatchingCommand) error
	// PublishBroadcastTimeout arms the broadcast delay queue with cmd.
	PublishBroadcastTimeout(ctx context.Context, cmd contracts.MatchingCommand) error
}

// Notifier publishes the two logical notification kinds. Both are
// fire-and-forget from the orchestrator's perspective; delivery transport is
// out of scope.
type Notifier interface {
	NotifyDriverOffer(ctx context.Context, offer contracts.DriverOfferNotification) error
	NotifyRiderStatus(ctx context.Context, status contracts.RiderStatusNotification) error
}

// MatchingService coordinates one ride request to one driver: sequential
// ranked offers, broadcast fallback, and convergence to a terminal phase.
type MatchingService interface {
	// StartMatching seeds a session from the upstream ranking producer and
	// issues the first SEND_NEXT_OFFER (or routes straight to broadcast).
	StartMatching(ctx context.Context, seed contracts.MatchSeed) error

	// HandleCommand dispatches one inbound command to its handler. A returned
	// error means the command must be redelivered by the broker.
	HandleCommand(ctx context.Context, cmd contracts.MatchingCommand) error

	// HandleDeadLetter force-terminates the session behind a command that
	// exhausted its delivery attempts.
	HandleDeadLetter(ctx context.Context, cmd contracts.MatchingCommand, attempts int64) error

	// StartBackgroundConsumers starts the command, seed, and dead-letter
	// consumers. They run until ctx is cancelled.
	StartBackgroundConsumers(ctx context.Context)
}

// MatchingWindows groups the configured time windows the orchestrator applies.
type MatchingWindows struct {
	DriverResponse time.Duration // per-offer response window
	Broadcast      time.Duration // broadcast phase bound
	MinSessionTTL  time.Duration // floor for session-store TTLs
	ForcedExpiry   time.Duration // short TTL for dead-letter forced writes
}
