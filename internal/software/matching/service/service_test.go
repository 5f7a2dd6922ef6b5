package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/general/config"
	"campus-rides/internal/general/contracts"
	"campus-rides/internal/general/logger"
	"campus-rides/internal/ports"
)

// ----- fakes -----

// fakeSessionRepo round-trips sessions through JSON so every Find returns a
// detached copy, the way the real store behaves.
type fakeSessionRepo struct {
	sessions map[string][]byte
	ttls     map[string]time.Duration
	findErr  error
	saveErr  error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[string][]byte),
		ttls:     make(map[string]time.Duration),
	}
}

func (repo *fakeSessionRepo) Find(_ context.Context, requestID string) (*matching.Session, error) {
	if repo.findErr != nil {
		return nil, repo.findErr
	}
	body, ok := repo.sessions[requestID]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	var session matching.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (repo *fakeSessionRepo) Save(_ context.Context, session *matching.Session, ttl time.Duration) error {
	if repo.saveErr != nil {
		return repo.saveErr
	}
	body, err := json.Marshal(session)
	if err != nil {
		return err
	}
	repo.sessions[session.RequestID] = body
	repo.ttls[session.RequestID] = ttl
	return nil
}

func (repo *fakeSessionRepo) Delete(_ context.Context, requestID string) error {
	delete(repo.sessions, requestID)
	delete(repo.ttls, requestID)
	return nil
}

func (repo *fakeSessionRepo) mustGet(t *testing.T, requestID string) *matching.Session {
	t.Helper()
	session, err := repo.Find(context.Background(), requestID)
	require.NoError(t, err)
	return session
}

type fakeBus struct {
	immediate      []contracts.MatchingCommand
	driverDelay    []contracts.MatchingCommand
	broadcastDelay []contracts.MatchingCommand

	publishErr        error
	broadcastDelayErr error
}

func (bus *fakeBus) Publish(_ context.Context, cmd contracts.MatchingCommand) error {
	if bus.publishErr != nil {
		return bus.publishErr
	}
	bus.immediate = append(bus.immediate, cmd)
	return nil
}

func (bus *fakeBus) PublishDriverTimeout(_ context.Context, cmd contracts.MatchingCommand) error {
	bus.driverDelay = append(bus.driverDelay, cmd)
	return nil
}

func (bus *fakeBus) PublishBroadcastTimeout(_ context.Context, cmd contracts.MatchingCommand) error {
	if bus.broadcastDelayErr != nil {
		return bus.broadcastDelayErr
	}
	bus.broadcastDelay = append(bus.broadcastDelay, cmd)
	return nil
}

type fakeNotifier struct {
	offers    []contracts.DriverOfferNotification
	statuses  []contracts.RiderStatusNotification
	offerErr  error
	statusErr error
}

func (n *fakeNotifier) NotifyDriverOffer(_ context.Context, offer contracts.DriverOfferNotification) error {
	if n.offerErr != nil {
		return n.offerErr
	}
	n.offers = append(n.offers, offer)
	return nil
}

func (n *fakeNotifier) NotifyRiderStatus(_ context.Context, status contracts.RiderStatusNotification) error {
	if n.statusErr != nil {
		return n.statusErr
	}
	n.statuses = append(n.statuses, status)
	return nil
}

func (n *fakeNotifier) lastStatus(t *testing.T) contracts.RiderStatusNotification {
	t.Helper()
	require.NotEmpty(t, n.statuses)
	return n.statuses[len(n.statuses)-1]
}

type fakeEventRepo struct {
	events []*matching.Event
}

func (repo *fakeEventRepo) Append(_ context.Context, event *matching.Event) error {
	repo.events = append(repo.events, event)
	return nil
}

// ----- setup -----

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Matching.Enabled = true
	cfg.Matching.DriverResponseSeconds = 30
	cfg.Matching.BroadcastSeconds = 120
	cfg.Matching.RetryDelaySeconds = 5
	cfg.Matching.MaxDeliveryAttempts = 5
	cfg.Matching.DeadLetterThreshold = 3
	cfg.Matching.MinSessionTTLSeconds = 10
	cfg.Matching.ForcedExpirySeconds = 60
	cfg.Services.Prefetch = 10
	return cfg
}

func newTestService(t *testing.T) (*matchingService, *fakeSessionRepo, *fakeBus, *fakeNotifier, *fakeEventRepo) {
	t.Helper()

	repo := newFakeSessionRepo()
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	events := &fakeEventRepo{}

	svc := NewMatchingService(logger.New("matching-service-test"), repo, events, bus, notifier, nil, testConfig())
	return svc.(*matchingService), repo, bus, notifier, events
}

func testSeed(proposals int) contracts.MatchSeed {
	seed := contracts.MatchSeed{
		RequestID:      "req-1",
		RiderID:        "rider-1",
		Deadline:       time.Now().Add(5 * time.Minute),
		PickupAddress:  "Library",
		DropoffAddress: "Dorm B",
		Fare:           12.5,
	}
	for i := 0; i < proposals; i++ {
		seed.Proposals = append(seed.Proposals, contracts.SeedProposal{
			DriverID: driverID(i),
			RideID:   rideID(i),
			Score:    float64(100 - i),
			Rank:     i + 1,
		})
	}
	return seed
}

func driverID(i int) string { return "driver-" + string(rune('a'+i)) }
func rideID(i int) string   { return "ride-" + string(rune('a'+i)) }

// ----- tests -----

func TestStartMatching_SeedsSessionAndSendsFirstOffer(t *testing.T) {
	svc, repo, bus, _, events := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))

	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseMatching, session.Phase)
	assert.Len(t, session.Proposals, 2)
	assert.Equal(t, 0, session.NextProposalIndex)

	require.Len(t, bus.immediate, 1)
	assert.Equal(t, contracts.CommandSendNextOffer, bus.immediate[0].Type)
	assert.NotEmpty(t, bus.immediate[0].CorrelationID)

	require.NotEmpty(t, events.events)
	assert.Equal(t, matching.EventSessionSeeded, events.events[0].Type)
}

func TestStartMatching_DuplicateSeedIgnored(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))
	require.Len(t, notifier.offers, 1)

	// a redelivered seed for a session that is already being driven is a no-op
	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))

	assert.Len(t, bus.immediate, 1)
	assert.Len(t, notifier.offers, 1)
	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseAwaitingConfirmation, session.Phase)
	assert.Equal(t, 1, session.NextProposalIndex)
}

// A seed delivery can die between persisting the session and publishing the
// first offer command. The redelivered seed must re-arm that command, or the
// session would sit un-driven until TTL eviction.
func TestSeedRedeliveryRearmsUnkickedSession(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	bus.publishErr = errors.New("broker unavailable")
	require.Error(t, svc.StartMatching(ctx, testSeed(2)))

	// session persisted, but no command ever made it out
	session := repo.mustGet(t, "req-1")
	require.Equal(t, matching.PhaseMatching, session.Phase)
	require.Empty(t, bus.immediate)

	// broker redelivers the nacked seed once publishing recovers
	bus.publishErr = nil
	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))

	require.Len(t, bus.immediate, 1)
	assert.Equal(t, contracts.CommandSendNextOffer, bus.immediate[0].Type)

	// and the re-armed command drives the session forward normally
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))
	session = repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseAwaitingConfirmation, session.Phase)
	require.Len(t, notifier.offers, 1)
	assert.Equal(t, driverID(0), notifier.offers[0].DriverID)
}

// Same failure shape for a broadcast-only seed: the timeout must be re-armed
// on redelivery so the session cannot broadcast forever.
func TestSeedRedeliveryRearmsBroadcastTimeout(t *testing.T) {
	svc, repo, bus, _, _ := newTestService(t)
	ctx := context.Background()

	bus.broadcastDelayErr = errors.New("broker unavailable")
	require.Error(t, svc.StartMatching(ctx, testSeed(0)))

	session := repo.mustGet(t, "req-1")
	require.Equal(t, matching.PhaseBroadcasting, session.Phase)
	require.Empty(t, bus.broadcastDelay)

	bus.broadcastDelayErr = nil
	require.NoError(t, svc.StartMatching(ctx, testSeed(0)))

	require.Len(t, bus.broadcastDelay, 1)
	assert.Equal(t, contracts.CommandBroadcastTimeout, bus.broadcastDelay[0].Type)

	// the re-armed timeout expires the session
	require.NoError(t, svc.HandleCommand(ctx, bus.broadcastDelay[0]))
	_, err := repo.Find(ctx, "req-1")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

// Scenario A: two proposals, sequential timeouts walk the ranked list and
// then fall back to broadcast.
func TestSequentialOffersThenBroadcast(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))

	// first offer
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))
	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseAwaitingConfirmation, session.Phase)
	require.NotNil(t, session.ActiveOffer)
	assert.Equal(t, driverID(0), session.ActiveOffer.DriverID)
	require.Len(t, bus.driverDelay, 1)

	// first driver times out: second offer
	require.NoError(t, svc.HandleCommand(ctx, bus.driverDelay[0]))
	session = repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseAwaitingConfirmation, session.Phase)
	require.NotNil(t, session.ActiveOffer)
	assert.Equal(t, driverID(1), session.ActiveOffer.DriverID)
	require.Len(t, bus.driverDelay, 2)

	// second driver times out: proposals exhausted, broadcast begins
	require.NoError(t, svc.HandleCommand(ctx, bus.driverDelay[1]))
	session = repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseBroadcasting, session.Phase)
	assert.Nil(t, session.ActiveOffer)
	require.NotNil(t, session.BroadcastDeadline)
	require.Len(t, bus.broadcastDelay, 1)

	assert.Equal(t, contracts.RiderStatusBroadcasting, notifier.lastStatus(t).Status)

	// each driver was offered exactly once
	require.Len(t, notifier.offers, 2)
	assert.Equal(t, driverID(0), notifier.offers[0].DriverID)
	assert.Equal(t, driverID(1), notifier.offers[1].DriverID)
}

// Scenario B: broadcast accept completes the session; a late broadcast
// timeout is a no-op.
func TestBroadcastAcceptThenStaleTimeout(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(0)))
	session := repo.mustGet(t, "req-1")
	require.Equal(t, matching.PhaseBroadcasting, session.Phase)

	accept := contracts.MatchingCommand{
		Type:      contracts.CommandDriverResponse,
		RequestID: "req-1",
		DriverID:  "driver-7",
		RideID:    "ride-7",
		Accepted:  true,
		Broadcast: true,
		Envelope:  contracts.Envelope{CorrelationID: "resp-7"},
	}
	require.NoError(t, svc.HandleCommand(ctx, accept))

	// session deleted on completion
	_, err := repo.Find(ctx, "req-1")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	confirmed := notifier.lastStatus(t)
	assert.Equal(t, contracts.RiderStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.DriverInfo)
	assert.Equal(t, "driver-7", confirmed.DriverInfo.DriverID)

	// the armed broadcast timeout arrives after resolution: no-op, no notification
	before := len(notifier.statuses)
	require.Len(t, bus.broadcastDelay, 1)
	require.NoError(t, svc.HandleCommand(ctx, bus.broadcastDelay[0]))
	assert.Len(t, notifier.statuses, before)
}

// Scenario C: an empty ranked list routes straight to broadcast without
// touching the proposal cursor.
func TestEmptySeedGoesStraightToBroadcast(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(0)))

	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseBroadcasting, session.Phase)
	assert.Equal(t, 0, session.NextProposalIndex)
	require.NotNil(t, session.BroadcastDeadline)

	assert.Empty(t, bus.immediate)
	require.Len(t, bus.broadcastDelay, 1)
	assert.Equal(t, contracts.RiderStatusBroadcasting, notifier.lastStatus(t).Status)
}

// Scenario D: a command past the dead-letter threshold force-expires the
// session with a short TTL.
func TestDeadLetterForcesExpiry(t *testing.T) {
	svc, repo, bus, notifier, events := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))
	require.Equal(t, matching.PhaseAwaitingConfirmation, repo.mustGet(t, "req-1").Phase)

	poison := contracts.MatchingCommand{
		Type:      contracts.CommandDriverTimeout,
		RequestID: "req-1",
		DriverID:  driverID(0),
		RideID:    rideID(0),
	}
	require.NoError(t, svc.HandleDeadLetter(ctx, poison, 5))

	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseExpired, session.Phase)
	assert.Equal(t, 60*time.Second, repo.ttls["req-1"])
	assert.Equal(t, contracts.RiderStatusExpired, notifier.lastStatus(t).Status)

	last := events.events[len(events.events)-1]
	assert.Equal(t, matching.EventForceExpired, last.Type)
}

func TestDeadLetterBelowThresholdOnlyLogs(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))

	before := len(notifier.statuses)
	poison := contracts.MatchingCommand{Type: contracts.CommandDriverTimeout, RequestID: "req-1"}
	require.NoError(t, svc.HandleDeadLetter(ctx, poison, 2))

	assert.Equal(t, matching.PhaseAwaitingConfirmation, repo.mustGet(t, "req-1").Phase)
	assert.Len(t, notifier.statuses, before)
}

func TestIdempotentRedelivery(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))

	first := bus.immediate[0]
	require.NoError(t, svc.HandleCommand(ctx, first))
	require.NoError(t, svc.HandleCommand(ctx, first)) // same correlation id again

	session := repo.mustGet(t, "req-1")
	assert.Equal(t, 1, session.NextProposalIndex)
	assert.Len(t, notifier.offers, 1)
	assert.Len(t, bus.driverDelay, 1)
}

func TestStaleDriverTimeoutIgnored(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))

	// a timeout for a driver that is not the outstanding offer
	stale := contracts.MatchingCommand{
		Type:      contracts.CommandDriverTimeout,
		RequestID: "req-1",
		DriverID:  "driver-x",
		RideID:    "ride-x",
	}
	offersBefore := len(notifier.offers)
	require.NoError(t, svc.HandleCommand(ctx, stale))

	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseAwaitingConfirmation, session.Phase)
	require.NotNil(t, session.ActiveOffer)
	assert.Equal(t, driverID(0), session.ActiveOffer.DriverID)
	assert.Len(t, notifier.offers, offersBefore)
}

func TestDirectAcceptMustMatchOffer(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))

	// accept from the wrong driver for a superseded offer is discarded
	wrong := contracts.MatchingCommand{
		Type:      contracts.CommandDriverResponse,
		RequestID: "req-1",
		DriverID:  driverID(1),
		RideID:    rideID(1),
		Accepted:  true,
		Envelope:  contracts.Envelope{CorrelationID: "resp-wrong"},
	}
	require.NoError(t, svc.HandleCommand(ctx, wrong))
	assert.Equal(t, matching.PhaseAwaitingConfirmation, repo.mustGet(t, "req-1").Phase)

	// accept matching the outstanding offer completes the session
	right := contracts.MatchingCommand{
		Type:      contracts.CommandDriverResponse,
		RequestID: "req-1",
		DriverID:  driverID(0),
		RideID:    rideID(0),
		Accepted:  true,
		Attributes: map[string]string{
			"driver_name":   "Sam",
			"driver_rating": "4.8",
			"vehicle_plate": "CAM-123",
		},
		Envelope: contracts.Envelope{CorrelationID: "resp-right"},
	}
	require.NoError(t, svc.HandleCommand(ctx, right))

	_, err := repo.Find(ctx, "req-1")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	confirmed := notifier.lastStatus(t)
	assert.Equal(t, contracts.RiderStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.DriverInfo)
	assert.Equal(t, "Sam", confirmed.DriverInfo.Name)
	assert.InDelta(t, 4.8, confirmed.DriverInfo.Rating, 0.001)
	require.NotNil(t, confirmed.DriverInfo.Vehicle)
	assert.Equal(t, "CAM-123", confirmed.DriverInfo.Vehicle.Plate)
}

func TestExplicitRejectAdvancesToNextCandidate(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))

	reject := contracts.MatchingCommand{
		Type:      contracts.CommandDriverResponse,
		RequestID: "req-1",
		DriverID:  driverID(0),
		RideID:    rideID(0),
		Accepted:  false,
		Envelope:  contracts.Envelope{CorrelationID: "resp-reject"},
	}
	require.NoError(t, svc.HandleCommand(ctx, reject))

	session := repo.mustGet(t, "req-1")
	require.NotNil(t, session.ActiveOffer)
	assert.Equal(t, driverID(1), session.ActiveOffer.DriverID)
	assert.Len(t, notifier.offers, 2)
}

func TestCancelMatching(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))

	cancel := contracts.MatchingCommand{
		Type:      contracts.CommandCancelMatching,
		RequestID: "req-1",
		Envelope:  contracts.Envelope{CorrelationID: "cancel-1"},
	}
	require.NoError(t, svc.HandleCommand(ctx, cancel))

	_, err := repo.Find(ctx, "req-1")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	assert.Equal(t, contracts.RiderStatusCancelled, notifier.lastStatus(t).Status)

	// cancelling an already-resolved request is a warned no-op
	before := len(notifier.statuses)
	cancel.CorrelationID = "cancel-2"
	require.NoError(t, svc.HandleCommand(ctx, cancel))
	assert.Len(t, notifier.statuses, before)
}

func TestNoDriverOfferedTwice(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	// ranked list with the same driver appearing twice
	seed := testSeed(2)
	seed.Proposals[1].DriverID = seed.Proposals[0].DriverID
	require.NoError(t, svc.StartMatching(ctx, seed))

	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))
	require.NoError(t, svc.HandleCommand(ctx, bus.driverDelay[0]))

	// the duplicate was skipped and the session went straight to broadcast
	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseBroadcasting, session.Phase)
	require.Len(t, notifier.offers, 1)
	assert.Equal(t, seed.Proposals[0].DriverID, notifier.offers[0].DriverID)
}

func TestSessionTTLTracksDeadlineWithFloor(t *testing.T) {
	svc, repo, bus, _, _ := newTestService(t)
	ctx := context.Background()

	seed := testSeed(2)
	seed.Deadline = time.Now().Add(-time.Minute) // already past
	require.NoError(t, svc.StartMatching(ctx, seed))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))

	assert.Equal(t, 10*time.Second, repo.ttls["req-1"])
}

func TestSessionTTLComputedFromInjectedClock(t *testing.T) {
	svc, repo, bus, _, _ := newTestService(t)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	seed := testSeed(2)
	seed.Deadline = fixed.Add(90 * time.Second)
	require.NoError(t, svc.StartMatching(ctx, seed))
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))

	// with the clock frozen the TTL is exactly the time left to the deadline
	assert.Equal(t, 90*time.Second, repo.ttls["req-1"])
}

func TestMissingSessionIsDroppedWithoutError(t *testing.T) {
	svc, _, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	cmd := contracts.MatchingCommand{
		Type:      contracts.CommandSendNextOffer,
		RequestID: "req-unknown",
		Envelope:  contracts.Envelope{CorrelationID: "c-1"},
	}
	require.NoError(t, svc.HandleCommand(ctx, cmd))
	assert.Empty(t, notifier.statuses)
}

func TestStoreErrorPropagatesForRedelivery(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	repo.findErr = errors.New("connection refused")
	cmd := contracts.MatchingCommand{
		Type:      contracts.CommandSendNextOffer,
		RequestID: "req-1",
		Envelope:  contracts.Envelope{CorrelationID: "c-1"},
	}
	assert.Error(t, svc.HandleCommand(ctx, cmd))
}

func TestUnknownCommandTypeIsAnError(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	cmd := contracts.MatchingCommand{Type: "REWIND_TIME", RequestID: "req-1"}
	err := svc.HandleCommand(context.Background(), cmd)
	assert.ErrorIs(t, err, contracts.ErrInvalidCommandType)
}

func TestDriverOfferPublishFailurePropagates(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(2)))
	notifier.offerErr = errors.New("broker unavailable")

	// the command must fail so the broker redelivers it
	assert.Error(t, svc.HandleCommand(ctx, bus.immediate[0]))

	// nothing was persisted: the redelivered command starts from a clean state
	session := repo.mustGet(t, "req-1")
	assert.Equal(t, matching.PhaseMatching, session.Phase)
	assert.Equal(t, 0, session.NextProposalIndex)
}

func TestRiderStatusPublishFailureIsTolerated(t *testing.T) {
	svc, repo, bus, notifier, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartMatching(ctx, testSeed(1)))
	notifier.statusErr = errors.New("broker unavailable")

	// offer still goes out and the command still succeeds
	require.NoError(t, svc.HandleCommand(ctx, bus.immediate[0]))
	assert.Equal(t, matching.PhaseAwaitingConfirmation, repo.mustGet(t, "req-1").Phase)
	assert.Len(t, notifier.offers, 1)
}
