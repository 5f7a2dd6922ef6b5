package matching

import "time"

// Proposal is one ranked candidate produced by the upstream ranking component.
// Insertion order equals ranking order; the session never re-sorts proposals.
type Proposal struct {
	DriverID string  `json:"driver_id"`
	RideID   string  `json:"ride_id"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// ActiveOffer is the single outstanding offer presented to one driver.
// Equality is by the (ride_id, driver_id) pair; ExpiresAt is informational
// and never part of matching, so a redelivered timeout with a recomputed
// deadline still matches the offer it was armed for.
type ActiveOffer struct {
	DriverID  string    `json:"driver_id"`
	RideID    string    `json:"ride_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Matches reports whether the offer refers to the given (ride, driver) pair.
func (offer ActiveOffer) Matches(rideID, driverID string) bool {
	return offer.RideID == rideID && offer.DriverID == driverID
}
