package matching

import (
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"
)

// EventType corresponds to the values in the `match_event_type` table.
type EventType string

const (
	EventSessionSeeded    EventType = "SESSION_SEEDED"
	EventOfferSent        EventType = "OFFER_SENT"
	EventDriverTimeout    EventType = "DRIVER_TIMEOUT"
	EventDriverRejected   EventType = "DRIVER_REJECTED"
	EventBroadcastStarted EventType = "BROADCAST_STARTED"
	EventMatchCompleted   EventType = "MATCH_COMPLETED"
	EventMatchExpired     EventType = "MATCH_EXPIRED"
	EventMatchCancelled   EventType = "MATCH_CANCELLED"
	EventForceExpired     EventType = "FORCE_EXPIRED"
)

var ErrInvalidEventType = errors.New("invalid match event type")

// ParseEventType normalizes (uppercases+trims) and validates an event type string.
func ParseEventType(input string) (EventType, error) {
	eventType := EventType(strings.ToUpper(strings.TrimSpace(input)))
	if eventType.Valid() {
		return eventType, nil
	}
	return "", ErrInvalidEventType
}

// Valid reports whether eventType is one of the allowed event type constants.
func (eventType EventType) Valid() bool {
	switch eventType {
	case EventSessionSeeded,
		EventOfferSent,
		EventDriverTimeout,
		EventDriverRejected,
		EventBroadcastStarted,
		EventMatchCompleted,
		EventMatchExpired,
		EventMatchCancelled,
		EventForceExpired:
		return true
	default:
		return false
	}
}

// String returns the string representation of the EventType.
func (eventType EventType) String() string {
	return string(eventType)
}

// Event is the domain entity corresponding to the `match_events` table.
// The audit trail is append-only; one row per session transition.
type Event struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time

	// Foreign keys
	RequestID string

	// Core payload
	Type  EventType
	Phase Phase
	Data  map[string]any
}

var (
	ErrEventRequestRequired = errors.New("request id is required")
	ErrEventDataNil         = errors.New("event data must not be nil")
)

// NewEvent constructs a new domain Event.
func NewEvent(requestID string, eventType EventType, phase Phase, eventData map[string]any) (*Event, error) {
	if requestID = strings.TrimSpace(requestID); requestID == "" {
		return nil, ErrEventRequestRequired
	}
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	if eventData == nil {
		return nil, ErrEventDataNil
	}

	return &Event{
		RequestID: requestID,
		Type:      eventType,
		Phase:     phase,
		Data:      cloneMap(eventData),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Validate performs basic invariants checks mirroring DB constraints.
func (event *Event) Validate() error {
	if event.RequestID == "" {
		return ErrEventRequestRequired
	}
	if !event.Type.Valid() {
		return ErrInvalidEventType
	}
	if event.Data == nil {
		return ErrEventDataNil
	}
	return nil
}

// DataJSON returns event.Data encoded as JSON.
func (event *Event) DataJSON() ([]byte, error) {
	if event.Data == nil {
		return nil, ErrEventDataNil
	}
	return json.Marshal(event.Data)
}

// cloneMap makes a shallow defensive copy of a map[string]any.
func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	maps.Copy(dst, src)
	return dst
}
