package service

import (
	"context"
	"errors"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/general/contracts"
	"campus-rides/internal/ports"

	"github.com/google/uuid"
)

// StartMatching seeds a session from the upstream ranking producer. A seed
// with candidates creates a MATCHING session and self-sends the first
// SEND_NEXT_OFFER; an empty ranked list routes the request straight to
// broadcast without ever touching the proposal cursor.
func (service *matchingService) StartMatching(ctx context.Context, seed contracts.MatchSeed) error {
	ctx = service.logger.WithRequestID(ctx, seed.RequestID)

	// idempotent seeding: a redelivered seed for an existing session must not
	// re-create it, but it may have to re-arm the kick-off command when the
	// previous delivery persisted the session and then failed to publish
	if existing, err := service.sessions.Find(ctx, seed.RequestID); err == nil {
		return service.rearmSeededSession(ctx, existing)
	} else if !errors.Is(err, ports.ErrSessionNotFound) {
		return err
	}

	if len(seed.Proposals) == 0 {
		return service.startBroadcastOnly(ctx, seed)
	}

	proposals := make([]matching.Proposal, len(seed.Proposals))
	for i, p := range seed.Proposals {
		proposals[i] = matching.Proposal{
			DriverID: p.DriverID,
			RideID:   p.RideID,
			Score:    p.Score,
			Rank:     p.Rank,
		}
	}

	session, err := matching.NewSession(seed.RequestID, seed.RiderID, seed.Deadline, proposals)
	if err != nil {
		return err
	}
	session.PickupAddress = seed.PickupAddress
	session.DropoffAddress = seed.DropoffAddress
	session.Fare = seed.Fare

	if err := service.persistSession(ctx, session); err != nil {
		return err
	}

	service.appendEvent(ctx, session.RequestID, matching.EventSessionSeeded, session.Phase,
		map[string]any{"proposals": len(proposals), "deadline": seed.Deadline})

	// kick off the first offer through the command channel so delivery shares
	// the same retry path as every other command
	if err := service.bus.Publish(ctx, service.firstOfferCommand(session.RequestID)); err != nil {
		return err
	}

	service.logger.Info(ctx, "matching_started", "Matching session seeded",
		map[string]any{"request_id": session.RequestID, "proposals": len(proposals)})
	return nil
}

// startBroadcastOnly handles a seed with no ranked candidates: the session is
// created directly in BROADCASTING with the broadcast timeout armed.
func (service *matchingService) startBroadcastOnly(ctx context.Context, seed contracts.MatchSeed) error {
	now := service.now()
	session, err := matching.NewBroadcastSession(seed.RequestID, seed.RiderID, seed.Deadline, now.Add(service.windows.Broadcast))
	if err != nil {
		return err
	}
	session.PickupAddress = seed.PickupAddress
	session.DropoffAddress = seed.DropoffAddress
	session.Fare = seed.Fare

	if err := service.persistSession(ctx, session); err != nil {
		return err
	}

	service.appendEvent(ctx, session.RequestID, matching.EventSessionSeeded, session.Phase,
		map[string]any{"proposals": 0, "deadline": seed.Deadline})
	service.appendEvent(ctx, session.RequestID, matching.EventBroadcastStarted, session.Phase,
		map[string]any{"broadcast_deadline": session.BroadcastDeadline})

	service.notifyRiderStatus(ctx, session, contracts.RiderStatusBroadcasting,
		"No direct candidates available; your request is now visible to all nearby drivers")

	if err := service.bus.PublishBroadcastTimeout(ctx, service.broadcastTimeoutCommand(session.RequestID)); err != nil {
		return err
	}

	service.logger.Info(ctx, "matching_broadcast_only", "Seed had no candidates; request went straight to broadcast",
		map[string]any{"request_id": session.RequestID})
	return nil
}

// rearmSeededSession handles a redelivered seed for a session that already
// exists. When the first delivery died between persisting the session and
// publishing its kick-off command, the redelivery is the only chance to arm
// it; without this the session would sit un-driven until TTL eviction.
// Re-arming is safe against true duplicates: a second SEND_NEXT_OFFER stops
// at the outstanding-offer guard and a second BROADCAST_TIMEOUT at the phase
// check once the first one resolved the session.
func (service *matchingService) rearmSeededSession(ctx context.Context, session *matching.Session) error {
	switch {
	case session.Phase == matching.PhaseMatching && session.ActiveOffer == nil && session.NextProposalIndex == 0:
		service.logger.Warn(ctx, "seed_redelivered_rearm", "Session exists but no offer command was armed; re-sending first offer",
			map[string]any{"request_id": session.RequestID})
		return service.bus.Publish(ctx, service.firstOfferCommand(session.RequestID))

	case session.Phase == matching.PhaseBroadcasting:
		service.logger.Warn(ctx, "seed_redelivered_rearm", "Session exists in broadcast; re-arming broadcast timeout",
			map[string]any{"request_id": session.RequestID})
		return service.bus.PublishBroadcastTimeout(ctx, service.broadcastTimeoutCommand(session.RequestID))

	default:
		service.logger.Warn(ctx, "seed_duplicate", "Session already exists for request; seed ignored",
			map[string]any{"request_id": session.RequestID, "phase": session.Phase.String()})
		return nil
	}
}

// firstOfferCommand builds the SEND_NEXT_OFFER that kicks off sequential
// matching for a freshly seeded session.
func (service *matchingService) firstOfferCommand(requestID string) contracts.MatchingCommand {
	now := service.now()
	return contracts.MatchingCommand{
		Type:       contracts.CommandSendNextOffer,
		RequestID:  requestID,
		OccurredAt: now,
		Envelope: contracts.Envelope{
			CorrelationID: uuid.NewString(),
			Producer:      "matching-service",
			SentAt:        now,
		},
	}
}

// broadcastTimeoutCommand builds the delayed BROADCAST_TIMEOUT for a session
// entering broadcast at seed time.
func (service *matchingService) broadcastTimeoutCommand(requestID string) contracts.MatchingCommand {
	now := service.now()
	return contracts.MatchingCommand{
		Type:       contracts.CommandBroadcastTimeout,
		RequestID:  requestID,
		OccurredAt: now,
		Envelope:   contracts.Envelope{Producer: "matching-service", SentAt: now},
	}
}
