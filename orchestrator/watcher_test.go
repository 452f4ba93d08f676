package orchestrator_test

import (
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/functionx/fx-bridge/orchestrator"
	"github.com/functionx/fx-bridge/testutil"
	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

type WatcherTestSuite struct {
	suite.Suite
	env   *testutil.GravityTestEnv
	hub   *testutil.KeeperHub
	eth   *fakeEth
	orch  testutil.TestOrchestrator
	store *orchestrator.CheckpointStore
	clock *fakeClock

	// event nonces of every claim send attempt
	attempts []uint64
}

func TestWatcherTestSuite(t *testing.T) {
	suite.Run(t, new(WatcherTestSuite))
}

func (s *WatcherTestSuite) SetupTest() {
	s.env, s.hub = newTestEnv(s.T(), 100)
	s.orch = s.env.Orchestrators[0]
	s.eth = newFakeEth(60)
	s.store = orchestrator.NewCheckpointStore(dbm.NewMemDB())
	s.clock = newFakeClock()
	s.attempts = nil
	s.hub.Intercept = func(msg types.Msg, deliver func() error) error {
		if claim, ok := msg.(types.EthereumClaim); ok {
			s.attempts = append(s.attempts, claim.GetEventNonce())
		}
		return deliver()
	}
}

// startAt makes the hub believe every event up to nonce was delivered at EVM height 40
func (s *WatcherTestSuite) startAt(nonce uint64) {
	s.hub.Do(func(env *testutil.GravityTestEnv) {
		env.Keeper.RestoreOrchestratorNonce(env.Ctx, s.orch.Orchestrator.String(), nonce, 40)
		env.Keeper.RestoreObservationState(env.Ctx, nonce, bridgetypes.LastObservedBlockHeight{HubBlockHeight: 1, EthBlockHeight: 40}, 0)
	})
}

func (s *WatcherTestSuite) newWatcher() *orchestrator.Watcher {
	submitter := orchestrator.NewSubmitter(log.NewNopLogger(), s.hub, s.orch.Orchestrator.String(), time.Second, noRetry)
	tracker := orchestrator.NewTracker(orchestrator.DefaultConfirmationDepth, orchestrator.DefaultConfirmationTimeout).WithClock(s.clock.Now)
	return orchestrator.NewWatcher(log.NewNopLogger(), s.eth, s.hub, tracker, submitter, s.store, time.Second, 0, 0)
}

func (s *WatcherTestSuite) delivered() []uint64 {
	var nonces []uint64
	for _, msg := range s.hub.Delivered {
		if claim, ok := msg.(types.EthereumClaim); ok {
			nonces = append(nonces, claim.GetEventNonce())
		}
	}
	return nonces
}

func (s *WatcherTestSuite) lastEventNonce() uint64 {
	var nonce uint64
	s.hub.Do(func(env *testutil.GravityTestEnv) {
		nonce = env.Keeper.GetLastEventNonceByOrchestrator(env.Ctx, s.orch.Orchestrator.String())
	})
	return nonce
}

func (s *WatcherTestSuite) TestOutOfOrderArrivalIsSubmittedInOrder() {
	s.startAt(4)
	w := s.newWatcher()

	s.eth.Reveal(deposit(6, 50))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Empty(s.attempts, "6 waits for 5")
	s.Require().Equal(1, w.Buffered())

	s.eth.Reveal(deposit(5, 49))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{5, 6}, s.attempts)

	s.eth.Reveal(deposit(7, 70))
	s.eth.SetHead(80)
	s.Require().NoError(w.Poll(testContext(s.T()), nil))

	s.Require().Equal([]uint64{5, 6, 7}, s.attempts)
	s.Require().Equal([]uint64{5, 6, 7}, s.delivered())
	s.Require().Equal(uint64(7), s.lastEventNonce())
	s.Require().Zero(w.Buffered())

	cp, found, err := s.store.LastSeen()
	s.Require().NoError(err)
	s.Require().True(found)
	s.Require().Equal(orchestrator.Checkpoint{EventNonce: 7, BlockHeight: 70}, cp)
	inFlight, err := s.store.InFlight()
	s.Require().NoError(err)
	s.Require().Empty(inFlight)
}

func (s *WatcherTestSuite) TestUnacknowledgedSendIsNotDeliveredTwice() {
	s.startAt(9)
	sends := 0
	s.hub.Intercept = func(msg types.Msg, deliver func() error) error {
		s.attempts = append(s.attempts, msg.(types.EthereumClaim).GetEventNonce())
		sends++
		err := deliver()
		if sends == 1 {
			// executed on the hub, but the response was lost
			return errors.New("connection reset by peer")
		}
		return err
	}

	w := s.newWatcher()
	s.eth.Reveal(deposit(10, 50))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))

	s.Require().Equal([]uint64{10, 10}, s.attempts)
	s.Require().Equal([]uint64{10}, s.delivered())
	s.Require().Equal(uint64(10), s.lastEventNonce())

	s.hub.Do(func(env *testutil.GravityTestEnv) {
		atts := env.Keeper.GetAttestationsByNonce(env.Ctx, 10)
		s.Require().Len(atts, 1)
		s.Require().Len(atts[0].Votes, 1)
		s.Require().True(atts[0].Observed)
		s.Require().True(env.Bank.Minted.AmountOf(types.VoucherDenom(tokenContract)).Equal(math.NewInt(1000)))
	})

	// a later rescan of the same range sends nothing
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Len(s.attempts, 2)
}

func (s *WatcherTestSuite) TestConfirmationGating() {
	s.startAt(0)
	s.eth.SetHead(100)
	w := s.newWatcher()

	s.eth.Reveal(deposit(1, 100))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Empty(s.attempts, "head has not moved past the event")

	s.clock.Advance(orchestrator.DefaultConfirmationTimeout - time.Second)
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Empty(s.attempts)

	s.clock.Advance(time.Second)
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{1}, s.attempts, "forwarded once the timeout elapsed")

	s.eth.Reveal(deposit(2, 100))
	s.eth.SetHead(101)
	w2 := s.newWatcher()
	s.Require().NoError(w2.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{1, 2}, s.attempts, "forwarded at depth")
}

func (s *WatcherTestSuite) TestNonceGapResyncsFromHub() {
	s.startAt(6)
	rolledBack := false
	s.hub.Intercept = func(msg types.Msg, deliver func() error) error {
		if !rolledBack {
			// the hub state went back to nonce 4 after the watcher synced
			rolledBack = true
			s.env.Keeper.RestoreOrchestratorNonce(s.env.Ctx, s.orch.Orchestrator.String(), 4, 40)
			s.env.Keeper.RestoreObservationState(s.env.Ctx, 4, bridgetypes.LastObservedBlockHeight{HubBlockHeight: 1, EthBlockHeight: 40}, 0)
		}
		s.attempts = append(s.attempts, msg.(types.EthereumClaim).GetEventNonce())
		return deliver()
	}

	w := s.newWatcher()
	s.eth.Reveal(deposit(5, 49), deposit(6, 50), deposit(7, 55))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{7}, s.attempts, "rejected as a gap")
	s.Require().Empty(s.delivered())
	s.Require().Equal(uint64(40), w.ScanFrom(), "rescans from the hub's last event height")

	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{7, 5, 6, 7}, s.attempts)
	s.Require().Equal([]uint64{5, 6, 7}, s.delivered())
}

func (s *WatcherTestSuite) TestLateIndexedLogIsRescanned() {
	s.startAt(0)
	w := s.newWatcher().SetRescanPolls(3)

	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal(uint64(61), w.ScanFrom())

	// the node indexes a log below the scanned head, no later event points at the gap
	s.eth.Reveal(deposit(1, 45))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Empty(s.attempts)
	s.Require().Equal(uint64(40), w.ScanFrom(), "rewound after three idle polls")

	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{1}, s.delivered())

	// the cadence restarts after a delivery
	s.eth.Reveal(deposit(2, 50))
	for i := 0; i < 3; i++ {
		s.Require().NoError(w.Poll(testContext(s.T()), nil))
	}
	s.Require().Equal([]uint64{1, 2}, s.delivered())
}

func (s *WatcherTestSuite) TestRescanIsBoundedToTrailingWindow() {
	s.startAt(0)
	s.eth.SetHead(5000)
	submitter := orchestrator.NewSubmitter(log.NewNopLogger(), s.hub, s.orch.Orchestrator.String(), time.Second, noRetry)
	tracker := orchestrator.NewTracker(orchestrator.DefaultConfirmationDepth, orchestrator.DefaultConfirmationTimeout).WithClock(s.clock.Now)
	w := orchestrator.NewWatcher(log.NewNopLogger(), s.eth, s.hub, tracker, submitter, s.store, time.Second, 1000, 0).SetRescanPolls(2)

	for w.ScanFrom() <= 5000 {
		s.Require().NoError(w.Poll(testContext(s.T()), nil))
	}
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal(uint64(4001), w.ScanFrom())

	s.eth.scans = nil
	s.eth.Reveal(deposit(1, 4500))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal([]blockRange{{4001, 5000}}, s.eth.scans)
	s.Require().Equal([]uint64{1}, s.delivered())
}

func (s *WatcherTestSuite) TestRestartResumesFromCheckpoint() {
	s.startAt(4)
	s.eth.Reveal(deposit(5, 49), deposit(6, 50))
	s.Require().NoError(s.newWatcher().Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{5, 6}, s.attempts)

	s.eth.scans = nil
	restarted := s.newWatcher()
	s.Require().NoError(restarted.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{5, 6}, s.attempts, "nothing is sent twice")
	s.Require().NotEmpty(s.eth.scans)
	s.Require().Equal(uint64(50), s.eth.scans[0].from)
}

func (s *WatcherTestSuite) TestMalformedEventStallsWithoutSending() {
	s.startAt(0)
	bad := deposit(1, 45)
	bad.Amount = math.ZeroInt()
	s.eth.Reveal(bad, deposit(2, 46))

	w := s.newWatcher()
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Empty(s.attempts)
	s.Require().Equal(2, w.Buffered())
	inFlight, err := s.store.InFlight()
	s.Require().NoError(err)
	s.Require().Empty(inFlight)

	// a restart picks up the corrected observation
	s.eth.Replace(deposit(1, 45))
	s.Require().NoError(s.newWatcher().Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{1, 2}, s.attempts)
}

func (s *WatcherTestSuite) TestUnknownHeadForwardsNothing() {
	s.startAt(0)
	s.eth.Reveal(deposit(1, 45))
	s.eth.headErr = errors.New("dial tcp: connection refused")

	w := s.newWatcher()
	err := w.Poll(testContext(s.T()), nil)
	s.Require().ErrorIs(err, orchestrator.ErrHeadUnknown)
	s.Require().False(orchestrator.IsFatal(err))
	s.Require().Empty(s.attempts)

	s.eth.headErr = nil
	s.Require().NoError(w.Poll(testContext(s.T()), nil))
	s.Require().Equal([]uint64{1}, s.attempts)
}

func (s *WatcherTestSuite) TestReportsStates() {
	s.startAt(0)
	s.eth.Reveal(deposit(1, 45))

	var states []orchestrator.State
	s.Require().NoError(s.newWatcher().Poll(testContext(s.T()), func(st orchestrator.State) { states = append(states, st) }))
	s.Require().Equal([]orchestrator.State{
		orchestrator.StatePolling,
		orchestrator.StateConfirming,
		orchestrator.StateSubmitting,
	}, states)
}

func TestConflictingClaimHaltsWatcher(t *testing.T) {
	env, hub := newTestEnv(t, 10, 45, 45)
	orchs := env.Orchestrators

	// the two large orchestrators observe a different amount at nonce 1
	for _, orch := range orchs[1:] {
		claim := &types.MsgDepositClaim{
			EventNonce:    1,
			BlockHeight:   30,
			TokenContract: tokenContract,
			Amount:        math.NewInt(999),
			EthSender:     ethSender,
			Receiver:      receiver.String(),
			Orchestrator:  orch.Orchestrator.String(),
		}
		_, err := env.Handler(env.Ctx, claim)
		require.NoError(t, err)
	}

	eth := newFakeEth(60)
	eth.Reveal(deposit(1, 30))
	store := orchestrator.NewCheckpointStore(dbm.NewMemDB())
	submitter := orchestrator.NewSubmitter(log.NewNopLogger(), hub, orchs[0].Orchestrator.String(), time.Second, noRetry)
	tracker := orchestrator.NewTracker(1, time.Minute)
	w := orchestrator.NewWatcher(log.NewNopLogger(), eth, hub, tracker, submitter, store, time.Second, 0, 0)

	err := w.Poll(testContext(t), nil)
	require.ErrorIs(t, err, orchestrator.ErrConflictingClaim)
	require.True(t, orchestrator.IsFatal(err))
	require.Equal(t, uint64(1), submitter.Expected(), "nothing accepted")
}
