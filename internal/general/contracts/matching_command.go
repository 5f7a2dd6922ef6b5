package contracts

import (
	"errors"
	"strings"
	"time"
)

// CommandType enumerates every command the matching orchestrator consumes.
type CommandType string

const (
	CommandSendNextOffer    CommandType = "SEND_NEXT_OFFER"
	CommandDriverTimeout    CommandType = "DRIVER_TIMEOUT"
	CommandBroadcastTimeout CommandType = "BROADCAST_TIMEOUT"
	CommandDriverResponse   CommandType = "DRIVER_RESPONSE"
	CommandCancelMatching   CommandType = "CANCEL_MATCHING"
)

var ErrInvalidCommandType = errors.New("invalid matching command type")

// ParseCommandType normalizes (uppercases+trims) and validates a command type string.
func ParseCommandType(in string) (CommandType, error) {
	ct := CommandType(strings.ToUpper(strings.TrimSpace(in)))
	if ct.Valid() {
		return ct, nil
	}
	return "", ErrInvalidCommandType
}

// Valid reports whether ct is one of the allowed command type constants.
func (ct CommandType) Valid() bool {
	switch ct {
	case CommandSendNextOffer, CommandDriverTimeout, CommandBroadcastTimeout, CommandDriverResponse, CommandCancelMatching:
		return true
	default:
		return false
	}
}

// String returns the string representation of the CommandType.
func (ct CommandType) String() string {
	return string(ct)
}

// MatchingCommand is the single command message consumed from QueueMatchingCommands.
// Routing key: "matching.command.{command_type}" on ExchangeMatchingTopic.
// CorrelationID doubles as the de-duplication message id; internally generated
// timeout commands leave it empty and are validated by offer identity instead.
type MatchingCommand struct {
	Type           CommandType       `json:"command_type"`
	RequestID      string            `json:"request_id"`
	RideID         string            `json:"ride_id,omitempty"`
	DriverID       string            `json:"driver_id,omitempty"`
	CandidateIndex int               `json:"candidate_index,omitempty"`
	Accepted       bool              `json:"accepted,omitempty"`  // DRIVER_RESPONSE only
	Broadcast      bool              `json:"broadcast,omitempty"` // DRIVER_RESPONSE only
	Attributes     map[string]string `json:"attributes,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Envelope
}

// Validate checks the fields every consumer relies on.
func (cmd *MatchingCommand) Validate() error {
	if !cmd.Type.Valid() {
		return ErrInvalidCommandType
	}
	if strings.TrimSpace(cmd.RequestID) == "" {
		return errors.New("matching command: request_id is required")
	}
	return nil
}
