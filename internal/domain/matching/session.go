package matching

import (
	"errors"
	"strings"
	"time"
)

// Session is the authoritative matching state for one ride request, keyed by
// RequestID in the session store. It is mutated only by the orchestrator that
// loaded it for the duration of one command; every mutation goes through the
// transition methods below so the phase invariants hold at call boundaries.
type Session struct {
	// Identity & audit
	RequestID string    `json:"request_id"`
	RiderID   string    `json:"rider_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Core state
	Phase             Phase        `json:"phase"`
	Proposals         []Proposal   `json:"proposals"`
	NextProposalIndex int          `json:"next_proposal_index"`
	ActiveOffer       *ActiveOffer `json:"active_offer,omitempty"` // nil unless AWAITING_CONFIRMATION

	// NotifiedDrivers is the set of driver ids already offered this request.
	// A driver present here must never receive a second offer.
	NotifiedDrivers map[string]bool `json:"notified_drivers"`

	// Deadlines
	RequestDeadline   time.Time  `json:"request_deadline"`
	BroadcastDeadline *time.Time `json:"broadcast_deadline,omitempty"` // set iff Phase == BROADCASTING

	// De-duplication cursor for at-least-once command delivery.
	LastProcessedMessageID string    `json:"last_processed_message_id,omitempty"`
	LastProcessedAt        time.Time `json:"last_processed_at,omitempty"`

	// Ride context carried from the seed, echoed in notifications.
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
	Fare           float64 `json:"fare,omitempty"`
}

var (
	ErrRequestRequired   = errors.New("request id is required")
	ErrNoProposals       = errors.New("proposal list is empty")
	ErrSessionTerminal   = errors.New("session is in a terminal phase")
	ErrInvalidTransition = errors.New("invalid matching phase transition")
	ErrOfferOutstanding  = errors.New("an offer is already outstanding")
	ErrAlreadyBroadcast  = errors.New("session is already broadcasting")
	ErrProposalsLeft     = errors.New("proposals are not exhausted")
)

// NewSession creates a session in MATCHING with the ranked proposal list and
// the absolute request deadline. It fails on an empty list: the caller owns
// the policy of routing such requests straight to broadcast.
func NewSession(requestID, riderID string, deadline time.Time, proposals []Proposal) (*Session, error) {
	if requestID = strings.TrimSpace(requestID); requestID == "" {
		return nil, ErrRequestRequired
	}
	if len(proposals) == 0 {
		return nil, ErrNoProposals
	}

	now := time.Now().UTC()
	return &Session{
		RequestID:       requestID,
		RiderID:         riderID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Phase:           PhaseMatching,
		Proposals:       proposals,
		NotifiedDrivers: make(map[string]bool),
		RequestDeadline: deadline,
	}, nil
}

// NewBroadcastSession creates a session that skips the sequential offer phase
// entirely, used when the ranking producer returned no candidates.
func NewBroadcastSession(requestID, riderID string, deadline, broadcastDeadline time.Time) (*Session, error) {
	if requestID = strings.TrimSpace(requestID); requestID == "" {
		return nil, ErrRequestRequired
	}

	now := time.Now().UTC()
	bd := broadcastDeadline
	return &Session{
		RequestID:         requestID,
		RiderID:           riderID,
		CreatedAt:         now,
		UpdatedAt:         now,
		Phase:             PhaseBroadcasting,
		NotifiedDrivers:   make(map[string]bool),
		RequestDeadline:   deadline,
		BroadcastDeadline: &bd,
	}, nil
}

// HasMoreProposals reports whether the ranked list still has unconsumed entries.
func (session *Session) HasMoreProposals() bool {
	return session.NextProposalIndex < len(session.Proposals)
}

// ConsumeNextProposal returns the next ranked proposal and advances the
// cursor. It returns false and leaves the session unchanged when exhausted.
func (session *Session) ConsumeNextProposal() (Proposal, bool) {
	if !session.HasMoreProposals() {
		return Proposal{}, false
	}
	p := session.Proposals[session.NextProposalIndex]
	session.NextProposalIndex++
	session.touch()
	return p, true
}

// RecordNotifiedDriver marks a driver as offered. Idempotent.
func (session *Session) RecordNotifiedDriver(driverID string) {
	if driverID == "" {
		return
	}
	if session.NotifiedDrivers == nil {
		session.NotifiedDrivers = make(map[string]bool)
	}
	session.NotifiedDrivers[driverID] = true
	session.touch()
}

// WasDriverNotified reports whether the driver already received an offer for this request.
func (session *Session) WasDriverNotified(driverID string) bool {
	return session.NotifiedDrivers[driverID]
}

// BeginOffer installs the single outstanding offer and moves the session to
// AWAITING_CONFIRMATION. Valid from MATCHING or from AWAITING_CONFIRMATION
// after the previous offer was cleared.
func (session *Session) BeginOffer(driverID, rideID string, expiresAt time.Time) error {
	if session.Phase.Terminal() {
		return ErrSessionTerminal
	}
	if session.ActiveOffer != nil {
		return ErrOfferOutstanding
	}
	if !session.Phase.CanTransitionTo(PhaseAwaitingConfirmation) {
		return ErrInvalidTransition
	}

	session.ActiveOffer = &ActiveOffer{DriverID: driverID, RideID: rideID, ExpiresAt: expiresAt}
	session.Phase = PhaseAwaitingConfirmation
	session.touch()
	return nil
}

// ClearOffer drops the outstanding offer without changing phase. Used when a
// driver timed out or rejected and the next candidate (or broadcast) follows
// within the same command.
func (session *Session) ClearOffer() {
	if session.ActiveOffer == nil {
		return
	}
	session.ActiveOffer = nil
	session.touch()
}

// OfferMatches reports whether the outstanding offer refers to the given
// (ride, driver) pair. False when no offer is outstanding.
func (session *Session) OfferMatches(rideID, driverID string) bool {
	return session.ActiveOffer != nil && session.ActiveOffer.Matches(rideID, driverID)
}

// EnterBroadcast moves the session to BROADCASTING and records the broadcast
// deadline. Legal only with the proposal list exhausted, from MATCHING or from
// AWAITING_CONFIRMATION after the offer was cleared; re-entering BROADCASTING
// is illegal.
func (session *Session) EnterBroadcast(deadline time.Time) error {
	if session.Phase.Terminal() {
		return ErrSessionTerminal
	}
	if session.Phase == PhaseBroadcasting {
		return ErrAlreadyBroadcast
	}
	if session.HasMoreProposals() {
		return ErrProposalsLeft
	}
	if !session.Phase.CanTransitionTo(PhaseBroadcasting) {
		return ErrInvalidTransition
	}

	session.ActiveOffer = nil
	session.Phase = PhaseBroadcasting
	session.BroadcastDeadline = &deadline
	session.touch()
	return nil
}

// MarkCompleted sets the COMPLETED terminal phase. No-op when already terminal.
func (session *Session) MarkCompleted() {
	session.markTerminal(PhaseCompleted)
}

// MarkExpired sets the EXPIRED terminal phase. No-op when already terminal.
func (session *Session) MarkExpired() {
	session.markTerminal(PhaseExpired)
}

// MarkCancelled sets the CANCELLED terminal phase. No-op when already terminal.
func (session *Session) MarkCancelled() {
	session.markTerminal(PhaseCancelled)
}

// IsTerminal reports whether the session reached an absorbing phase.
func (session *Session) IsTerminal() bool {
	return session.Phase.Terminal()
}

// ShouldProcess is the at-least-once de-duplication guard. It returns false
// when messageID equals the last processed id; otherwise it records the id
// and returns true. An empty messageID always processes (commands without a
// dedup key are validated by offer identity instead).
func (session *Session) ShouldProcess(messageID string) bool {
	if messageID == "" {
		return true
	}
	if session.LastProcessedMessageID == messageID {
		return false
	}
	session.LastProcessedMessageID = messageID
	session.LastProcessedAt = time.Now().UTC()
	session.touch()
	return true
}

// markTerminal applies an absorbing phase and clears transient state.
// Double-delivery of a terminal command must not raise an error.
func (session *Session) markTerminal(phase Phase) {
	if session.Phase.Terminal() {
		return
	}
	session.Phase = phase
	session.ActiveOffer = nil
	session.BroadcastDeadline = nil
	session.touch()
}

func (session *Session) touch() {
	session.UpdatedAt = time.Now().UTC()
}
