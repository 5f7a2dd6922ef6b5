package contracts

import "time"

// NotificationType distinguishes the two logical notification kinds.
type NotificationType string

const (
	NotificationDriverOffer NotificationType = "DRIVER_OFFER"
	NotificationRiderStatus NotificationType = "RIDER_STATUS"
)

// Rider status codes carried by RiderStatusNotification.
const (
	RiderStatusOfferSent    = "offer_sent"
	RiderStatusBroadcasting = "broadcasting"
	RiderStatusConfirmed    = "confirmed"
	RiderStatusExpired      = "expired"
	RiderStatusCancelled    = "cancelled"
)

// DriverOfferNotification is published to a driver when an offer is presented.
// Routing key: "notify.driver.{driver_id}" on ExchangeNotifyTopic. Clients
// de-duplicate on (request_id, driver_id), so redelivered duplicates are safe.
type DriverOfferNotification struct {
	Type           NotificationType `json:"type"` // always DRIVER_OFFER
	RequestID      string           `json:"request_id"`
	RideID         string           `json:"ride_id"`
	DriverID       string           `json:"driver_id"`
	RiderID        string           `json:"rider_id,omitempty"`
	PickupAddress  string           `json:"pickup_address,omitempty"`
	DropoffAddress string           `json:"dropoff_address,omitempty"`
	Fare           float64          `json:"fare,omitempty"`
	Score          float64          `json:"match_score,omitempty"`
	Rank           int              `json:"match_rank,omitempty"`
	OfferExpiresAt time.Time        `json:"offer_expires_at"`
	Envelope
}

// RiderStatusNotification is published to the rider on every visible phase change.
// Routing key: "notify.rider.{rider_id}" on ExchangeNotifyTopic.
type RiderStatusNotification struct {
	Type       NotificationType `json:"type"` // always RIDER_STATUS
	RequestID  string           `json:"request_id"`
	RiderID    string           `json:"rider_id"`
	Status     string           `json:"status"` // offer_sent|broadcasting|confirmed|expired|cancelled
	Message    string           `json:"message,omitempty"`
	DriverInfo *DriverBrief     `json:"driver_info,omitempty"` // set once confirmed
	RideID     string           `json:"ride_id,omitempty"`
	Fare       float64          `json:"fare,omitempty"`
	Envelope
}
