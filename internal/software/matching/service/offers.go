package service

import (
	"context"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/general/contracts"
)

// HandleSendNextOffer presents the next ranked candidate with a response
// deadline, or enters broadcast once the ranked list is exhausted.
func (service *matchingService) HandleSendNextOffer(ctx context.Context, cmd contracts.MatchingCommand) error {
	ctx = service.logger.WithRequestID(ctx, cmd.RequestID)

	session, ok, err := service.loadSession(ctx, cmd.RequestID, "send_next_offer")
	if err != nil || !ok {
		return err
	}
	if !session.ShouldProcess(cmd.CorrelationID) {
		service.logger.Debug(ctx, "send_next_offer_duplicate", "Command already processed; skipping",
			map[string]any{"correlation_id": cmd.CorrelationID})
		return nil
	}
	if session.IsTerminal() {
		service.logger.Debug(ctx, "send_next_offer_terminal", "Session already terminal; command ignored",
			map[string]any{"phase": session.Phase.String()})
		return nil
	}
	if session.ActiveOffer != nil {
		// a redelivered SEND_NEXT_OFFER while an offer is outstanding must not
		// consume another proposal; the outstanding offer resolves it
		service.logger.Debug(ctx, "send_next_offer_outstanding", "An offer is already outstanding; command ignored",
			map[string]any{"driver_id": session.ActiveOffer.DriverID})
		return service.persistSession(ctx, session)
	}

	return service.advance(ctx, session)
}

// HandleDriverTimeout reacts to the delayed timeout for one offer: if the
// offer is still the outstanding one, it is cleared and matching advances to
// the next candidate or to broadcast. A timeout for a superseded offer is
// stale and ignored.
func (service *matchingService) HandleDriverTimeout(ctx context.Context, cmd contracts.MatchingCommand) error {
	ctx = service.logger.WithRequestID(ctx, cmd.RequestID)

	session, ok, err := service.loadSession(ctx, cmd.RequestID, "driver_timeout")
	if err != nil || !ok {
		return err
	}
	if !session.ShouldProcess(cmd.CorrelationID) {
		service.logger.Debug(ctx, "driver_timeout_duplicate", "Command already processed; skipping",
			map[string]any{"correlation_id": cmd.CorrelationID})
		return nil
	}
	if session.IsTerminal() {
		service.logger.Debug(ctx, "driver_timeout_terminal", "Session already terminal; timeout ignored",
			map[string]any{"phase": session.Phase.String()})
		return nil
	}
	if !session.OfferMatches(cmd.RideID, cmd.DriverID) {
		service.logger.Debug(ctx, "driver_timeout_stale", "Timeout does not match the outstanding offer; ignored",
			map[string]any{"ride_id": cmd.RideID, "driver_id": cmd.DriverID})
		return nil
	}

	service.appendEvent(ctx, session.RequestID, matching.EventDriverTimeout, session.Phase,
		map[string]any{"driver_id": cmd.DriverID, "ride_id": cmd.RideID})

	session.ClearOffer()
	return service.advance(ctx, session)
}

// advance moves a session with no outstanding offer forward: offer the next
// un-notified candidate, or enter broadcast when the ranked list is exhausted.
// It persists the session with a TTL tracking the request deadline.
func (service *matchingService) advance(ctx context.Context, session *matching.Session) error {
	now := service.now()

	for session.HasMoreProposals() {
		proposal, _ := session.ConsumeNextProposal()

		// a driver already offered this request must never be offered again
		if session.WasDriverNotified(proposal.DriverID) {
			service.logger.Debug(ctx, "proposal_skipped_notified", "Candidate already notified; skipping proposal",
				map[string]any{"driver_id": proposal.DriverID, "rank": proposal.Rank})
			continue
		}

		expiresAt := now.Add(service.windows.DriverResponse)
		session.RecordNotifiedDriver(proposal.DriverID)
		if err := session.BeginOffer(proposal.DriverID, proposal.RideID, expiresAt); err != nil {
			return err
		}

		if err := service.notifyDriverOffer(ctx, session, proposal); err != nil {
			return err
		}
		service.notifyRiderStatus(ctx, session, contracts.RiderStatusOfferSent,
			"A driver is reviewing your request")

		timeout := contracts.MatchingCommand{
			Type:       contracts.CommandDriverTimeout,
			RequestID:  session.RequestID,
			RideID:     proposal.RideID,
			DriverID:   proposal.DriverID,
			OccurredAt: now,
			// no correlation id: timeouts are validated by offer identity
			Envelope: contracts.Envelope{Producer: "matching-service", SentAt: now},
		}
		if err := service.bus.PublishDriverTimeout(ctx, timeout); err != nil {
			return err
		}

		service.appendEvent(ctx, session.RequestID, matching.EventOfferSent, session.Phase,
			map[string]any{"driver_id": proposal.DriverID, "ride_id": proposal.RideID, "rank": proposal.Rank, "expires_at": expiresAt})
		service.logger.Info(ctx, "offer_sent", "Offer presented to candidate driver",
			map[string]any{"driver_id": proposal.DriverID, "rank": proposal.Rank, "expires_at": expiresAt})

		return service.persistSession(ctx, session)
	}

	return service.enterBroadcast(ctx, session)
}

// enterBroadcast flips an exhausted session into BROADCASTING and arms the
// broadcast timeout.
func (service *matchingService) enterBroadcast(ctx context.Context, session *matching.Session) error {
	now := service.now()

	if err := session.EnterBroadcast(now.Add(service.windows.Broadcast)); err != nil {
		// a redundant broadcast entry for an already-broadcasting session is a no-op
		service.logger.Debug(ctx, "broadcast_enter_skipped", "Broadcast entry not applicable; ignored",
			map[string]any{"phase": session.Phase.String(), "error": err.Error()})
		return nil
	}

	service.notifyRiderStatus(ctx, session, contracts.RiderStatusBroadcasting,
		"All candidate drivers were tried; your request is now visible to all nearby drivers")

	timeout := contracts.MatchingCommand{
		Type:       contracts.CommandBroadcastTimeout,
		RequestID:  session.RequestID,
		OccurredAt: now,
		Envelope:   contracts.Envelope{Producer: "matching-service", SentAt: now},
	}
	if err := service.bus.PublishBroadcastTimeout(ctx, timeout); err != nil {
		return err
	}

	service.appendEvent(ctx, session.RequestID, matching.EventBroadcastStarted, session.Phase,
		map[string]any{"broadcast_deadline": session.BroadcastDeadline})
	service.logger.Info(ctx, "broadcast_started", "Proposals exhausted; request broadcast to all nearby drivers",
		map[string]any{"request_id": session.RequestID})

	return service.persistSession(ctx, session)
}
