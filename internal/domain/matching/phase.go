package matching

import (
	"errors"
	"strings"
)

// Phase is the lifecycle phase of a matching session as stored in the session store.
type Phase string

const (
	PhaseMatching             Phase = "MATCHING"
	PhaseAwaitingConfirmation Phase = "AWAITING_CONFIRMATION"
	PhaseBroadcasting         Phase = "BROADCASTING"
	PhaseCompleted            Phase = "COMPLETED"
	PhaseExpired              Phase = "EXPIRED"
	PhaseCancelled            Phase = "CANCELLED"
)

var ErrInvalidPhase = errors.New("invalid matching phase")

// ParsePhase normalizes (uppercases+trims) and validates a phase string.
func ParsePhase(in string) (Phase, error) {
	phase := Phase(strings.ToUpper(strings.TrimSpace(in)))
	if phase.Valid() {
		return phase, nil
	}
	return "", ErrInvalidPhase
}

// Valid reports whether phase is one of the allowed phase constants.
func (phase Phase) Valid() bool {
	switch phase {
	case PhaseMatching, PhaseAwaitingConfirmation, PhaseBroadcasting, PhaseCompleted, PhaseExpired, PhaseCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Phase.
func (phase Phase) String() string {
	return string(phase)
}

// CanTransitionTo specifies if the phase can transition to the next phase.
func (phase Phase) CanTransitionTo(next Phase) bool {
	switch phase {
	case PhaseMatching:
		return next == PhaseAwaitingConfirmation || next == PhaseBroadcasting || next == PhaseCancelled || next == PhaseExpired

	case PhaseAwaitingConfirmation:
		// a timeout with remaining proposals re-enters the same phase with the next candidate
		return next == PhaseAwaitingConfirmation || next == PhaseBroadcasting || next == PhaseCompleted || next == PhaseCancelled || next == PhaseExpired

	case PhaseBroadcasting:
		return next == PhaseCompleted || next == PhaseExpired || next == PhaseCancelled

	case PhaseCompleted, PhaseExpired, PhaseCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the phase is absorbing: no further mutation is permitted.
func (phase Phase) Terminal() bool {
	return phase == PhaseCompleted || phase == PhaseExpired || phase == PhaseCancelled
}
