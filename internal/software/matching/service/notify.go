package service

import (
	"context"
	"strconv"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/general/contracts"
)

// notifyRiderStatus publishes a rider-status notification. Rider status is
// fire-and-forget: a publish failure is logged as a warning and never fails
// the command, because redelivery would re-emit it anyway and clients key on
// (request_id, status).
func (service *matchingService) notifyRiderStatus(ctx context.Context, session *matching.Session, status, message string) {
	service.notifyRiderStatusWithDriver(ctx, session, status, message, nil, "")
}

func (service *matchingService) notifyRiderStatusWithDriver(ctx context.Context, session *matching.Session, status, message string, driver *contracts.DriverBrief, rideID string) {
	if session.RiderID == "" {
		service.logger.Warn(ctx, "rider_status_skipped", "Session has no rider id; status not published",
			map[string]any{"request_id": session.RequestID, "status": status})
		return
	}

	notification := contracts.RiderStatusNotification{
		Type:       contracts.NotificationRiderStatus,
		RequestID:  session.RequestID,
		RiderID:    session.RiderID,
		Status:     status,
		Message:    message,
		DriverInfo: driver,
		RideID:     rideID,
		Fare:       session.Fare,
		Envelope: contracts.Envelope{
			Producer: "matching-service",
			SentAt:   service.now(),
		},
	}

	if err := service.notifier.NotifyRiderStatus(ctx, notification); err != nil {
		service.logger.Warn(ctx, "rider_status_publish_failed", "Failed to publish rider status",
			map[string]any{"request_id": session.RequestID, "status": status, "error": err.Error()})
	}
}

// notifyDriverOffer publishes the offer to the candidate driver. Unlike rider
// status this failure propagates: without the offer the driver cannot respond,
// so the command must be redelivered.
func (service *matchingService) notifyDriverOffer(ctx context.Context, session *matching.Session, proposal matching.Proposal) error {
	if proposal.DriverID == "" {
		service.logger.Warn(ctx, "driver_offer_skipped", "Proposal has no driver id; offer not published",
			map[string]any{"request_id": session.RequestID, "rank": proposal.Rank})
		return nil
	}

	offer := contracts.DriverOfferNotification{
		Type:           contracts.NotificationDriverOffer,
		RequestID:      session.RequestID,
		RideID:         proposal.RideID,
		DriverID:       proposal.DriverID,
		RiderID:        session.RiderID,
		PickupAddress:  session.PickupAddress,
		DropoffAddress: session.DropoffAddress,
		Fare:           session.Fare,
		Score:          proposal.Score,
		Rank:           proposal.Rank,
		OfferExpiresAt: session.ActiveOffer.ExpiresAt,
		Envelope: contracts.Envelope{
			Producer: "matching-service",
			SentAt:   service.now(),
		},
	}

	return service.notifier.NotifyDriverOffer(ctx, offer)
}

// driverBriefFromAttributes builds the confirmed-driver details from the
// attribute map carried by an accepting DRIVER_RESPONSE.
func driverBriefFromAttributes(driverID string, attrs map[string]string) *contracts.DriverBrief {
	brief := &contracts.DriverBrief{DriverID: driverID}
	if attrs == nil {
		return brief
	}

	brief.UserID = attrs["driver_user_id"]
	brief.Name = attrs["driver_name"]
	if rating, err := strconv.ParseFloat(attrs["driver_rating"], 64); err == nil {
		brief.Rating = rating
	}

	vehicle := contracts.VehicleInfo{
		Make:  attrs["vehicle_make"],
		Model: attrs["vehicle_model"],
		Color: attrs["vehicle_color"],
		Plate: attrs["vehicle_plate"],
	}
	if vehicle != (contracts.VehicleInfo{}) {
		brief.Vehicle = &vehicle
	}

	return brief
}
