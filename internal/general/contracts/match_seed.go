package contracts

import "time"

// SeedProposal is one ranked candidate inside a MatchSeed.
type SeedProposal struct {
	DriverID string  `json:"driver_id"`
	RideID   string  `json:"ride_id"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// MatchSeed is published by the upstream ranking producer to start matching
// for one request. Routing key: "matching.seed" on ExchangeMatchingTopic.
// Proposals arrive in ranking order and may be empty, in which case the
// orchestrator routes the request straight to broadcast.
type MatchSeed struct {
	RequestID      string         `json:"request_id"`
	RiderID        string         `json:"rider_id"`
	Deadline       time.Time      `json:"request_deadline"`
	Proposals      []SeedProposal `json:"proposals"`
	PickupAddress  string         `json:"pickup_address,omitempty"`
	DropoffAddress string         `json:"dropoff_address,omitempty"`
	Fare           float64        `json:"fare,omitempty"`
	Envelope
}
