package service

import (
	"context"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/general/contracts"
)

// HandleDriverResponse applies a driver's accept or reject. A direct accept
// must match the outstanding offer; a broadcast accept wins for any
// non-terminal session (first accept wins, with the downstream ride
// assignment as the final arbiter). A stale response for a superseded offer
// is discarded, never applied.
func (service *matchingService) HandleDriverResponse(ctx context.Context, cmd contracts.MatchingCommand) error {
	ctx = service.logger.WithRequestID(ctx, cmd.RequestID)

	session, ok, err := service.loadSession(ctx, cmd.RequestID, "driver_response")
	if err != nil || !ok {
		return err
	}
	if !session.ShouldProcess(cmd.CorrelationID) {
		service.logger.Debug(ctx, "driver_response_duplicate", "Command already processed; skipping",
			map[string]any{"correlation_id": cmd.CorrelationID})
		return nil
	}
	if session.IsTerminal() {
		service.logger.Debug(ctx, "driver_response_terminal", "Session already terminal; response ignored",
			map[string]any{"phase": session.Phase.String(), "driver_id": cmd.DriverID})
		return nil
	}

	if !cmd.Accepted {
		return service.handleReject(ctx, session, cmd)
	}

	if !cmd.Broadcast && !session.OfferMatches(cmd.RideID, cmd.DriverID) {
		service.logger.Debug(ctx, "driver_response_stale", "Accept does not match the outstanding offer; discarded",
			map[string]any{"ride_id": cmd.RideID, "driver_id": cmd.DriverID})
		return nil
	}

	session.MarkCompleted()

	brief := driverBriefFromAttributes(cmd.DriverID, cmd.Attributes)
	service.notifyRiderStatusWithDriver(ctx, session, contracts.RiderStatusConfirmed,
		"A driver accepted your request", brief, cmd.RideID)

	service.appendEvent(ctx, session.RequestID, matching.EventMatchCompleted, session.Phase,
		map[string]any{"driver_id": cmd.DriverID, "ride_id": cmd.RideID, "broadcast": cmd.Broadcast})
	service.logger.Info(ctx, "match_completed", "Driver accepted; matching completed",
		map[string]any{"driver_id": cmd.DriverID, "broadcast": cmd.Broadcast})

	return service.sessions.Delete(ctx, session.RequestID)
}

// handleReject treats an explicit direct-offer reject exactly like a driver
// timeout: clear the offer and advance. A broadcast reject carries no offer
// to clear and is a no-op.
func (service *matchingService) handleReject(ctx context.Context, session *matching.Session, cmd contracts.MatchingCommand) error {
	if cmd.Broadcast {
		service.logger.Debug(ctx, "driver_response_broadcast_reject", "Broadcast reject; nothing to advance",
			map[string]any{"driver_id": cmd.DriverID})
		return service.persistSession(ctx, session)
	}
	if !session.OfferMatches(cmd.RideID, cmd.DriverID) {
		service.logger.Debug(ctx, "driver_response_reject_stale", "Reject does not match the outstanding offer; ignored",
			map[string]any{"ride_id": cmd.RideID, "driver_id": cmd.DriverID})
		return nil
	}

	service.appendEvent(ctx, session.RequestID, matching.EventDriverRejected, session.Phase,
		map[string]any{"driver_id": cmd.DriverID, "ride_id": cmd.RideID})
	service.logger.Info(ctx, "offer_rejected", "Driver rejected the offer; advancing",
		map[string]any{"driver_id": cmd.DriverID})

	session.ClearOffer()
	return service.advance(ctx, session)
}

// HandleBroadcastTimeout expires a session whose broadcast window elapsed
// without an accept. A timeout for a session that already resolved (no longer
// broadcasting) is a no-op.
func (service *matchingService) HandleBroadcastTimeout(ctx context.Context, cmd contracts.MatchingCommand) error {
	ctx = service.logger.WithRequestID(ctx, cmd.RequestID)

	session, ok, err := service.loadSession(ctx, cmd.RequestID, "broadcast_timeout")
	if err != nil || !ok {
		return err
	}
	if !session.ShouldProcess(cmd.CorrelationID) {
		service.logger.Debug(ctx, "broadcast_timeout_duplicate", "Command already processed; skipping",
			map[string]any{"correlation_id": cmd.CorrelationID})
		return nil
	}
	if session.Phase != matching.PhaseBroadcasting {
		service.logger.Debug(ctx, "broadcast_timeout_stale", "Session is not broadcasting; timeout ignored",
			map[string]any{"phase": session.Phase.String()})
		return nil
	}

	session.MarkExpired()

	service.notifyRiderStatus(ctx, session, contracts.RiderStatusExpired,
		"No driver accepted your request in time")

	service.appendEvent(ctx, session.RequestID, matching.EventMatchExpired, session.Phase, map[string]any{})
	service.logger.Info(ctx, "match_expired", "Broadcast window elapsed; request expired",
		map[string]any{"request_id": session.RequestID})

	return service.sessions.Delete(ctx, session.RequestID)
}

// HandleCancelMatching cancels an in-flight session on the rider's request.
// Idempotent against already-terminal sessions.
func (service *matchingService) HandleCancelMatching(ctx context.Context, cmd contracts.MatchingCommand) error {
	ctx = service.logger.WithRequestID(ctx, cmd.RequestID)

	session, ok, err := service.loadSession(ctx, cmd.RequestID, "cancel_matching")
	if err != nil || !ok {
		return err
	}
	if !session.ShouldProcess(cmd.CorrelationID) {
		service.logger.Debug(ctx, "cancel_matching_duplicate", "Command already processed; skipping",
			map[string]any{"correlation_id": cmd.CorrelationID})
		return nil
	}
	if session.IsTerminal() {
		service.logger.Debug(ctx, "cancel_matching_terminal", "Session already terminal; cancel ignored",
			map[string]any{"phase": session.Phase.String()})
		return nil
	}

	session.MarkCancelled()

	service.notifyRiderStatus(ctx, session, contracts.RiderStatusCancelled,
		"Your ride request was cancelled")

	service.appendEvent(ctx, session.RequestID, matching.EventMatchCancelled, session.Phase, map[string]any{})
	service.logger.Info(ctx, "match_cancelled", "Matching cancelled on request",
		map[string]any{"request_id": session.RequestID})

	return service.sessions.Delete(ctx, session.RequestID)
}
