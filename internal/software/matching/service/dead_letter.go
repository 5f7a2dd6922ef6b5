package service

import (
	"context"
	"encoding/json"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/general/contracts"
	"campus-rides/internal/general/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// handleDeadLetterDelivery is the terminal sink for poison messages. It never
// re-queues and never returns an error: everything arriving here is either
// force-terminated or logged and dropped.
func (service *matchingService) handleDeadLetterDelivery(ctx context.Context, d amqp.Delivery) error {
	var cmd contracts.MatchingCommand
	if err := json.Unmarshal(d.Body, &cmd); err != nil {
		service.logger.Warn(ctx, "dead_letter_unknown_payload", "Dead-lettered payload is not a matching command; dropped",
			map[string]any{"size": len(d.Body), "error": err.Error()})
		return nil
	}
	if err := cmd.Validate(); err != nil {
		service.logger.Warn(ctx, "dead_letter_unknown_payload", "Dead-lettered payload is not a matching command; dropped",
			map[string]any{"size": len(d.Body), "error": err.Error()})
		return nil
	}

	if err := service.HandleDeadLetter(ctx, cmd, rabbitmq.DeliveryAttempts(d)); err != nil {
		// the sink must not cycle: log and drop
		service.logger.Error(ctx, "dead_letter_handle_failed", "Failed to process dead-lettered command; dropped", err,
			map[string]any{"command_type": cmd.Type.String(), "request_id": cmd.RequestID})
	}
	return nil
}

// HandleDeadLetter force-terminates the session behind a command whose
// delivery attempts were exhausted. Only an attempt count above the
// configured threshold is treated as a permanent failure; anything below is
// logged for diagnosis and dropped. Forcing EXPIRED here is what guarantees
// the rider never hangs indefinitely when the normal timeout path failed.
func (service *matchingService) HandleDeadLetter(ctx context.Context, cmd contracts.MatchingCommand, attempts int64) error {
	ctx = service.logger.WithRequestID(ctx, cmd.RequestID)

	session, err := service.sessions.Find(ctx, cmd.RequestID)
	if err == nil {
		service.logger.Error(ctx, "command_dead_lettered", "Matching command exhausted its delivery attempts", nil,
			map[string]any{
				"command_type": cmd.Type.String(),
				"request_id":   cmd.RequestID,
				"phase":        session.Phase.String(),
				"attempts":     attempts,
			})
	} else {
		service.logger.Error(ctx, "command_dead_lettered", "Matching command exhausted its delivery attempts; no session stored", nil,
			map[string]any{
				"command_type": cmd.Type.String(),
				"request_id":   cmd.RequestID,
				"attempts":     attempts,
			})
		return nil
	}

	if attempts <= int64(service.cfg.Matching.DeadLetterThreshold) {
		return nil
	}
	if session.IsTerminal() {
		return nil
	}

	session.MarkExpired()

	service.notifyRiderStatus(ctx, session, contracts.RiderStatusExpired,
		"We could not complete matching for your request")

	service.appendEvent(ctx, session.RequestID, matching.EventForceExpired, session.Phase,
		map[string]any{"command_type": cmd.Type.String(), "attempts": attempts})
	service.logger.Warn(ctx, "session_force_expired", "Session force-expired from the dead-letter path",
		map[string]any{"request_id": session.RequestID, "command_type": cmd.Type.String()})

	// short TTL: the forced terminal write only needs to outlive in-flight readers
	return service.sessions.Save(ctx, session, service.windows.ForcedExpiry)
}
