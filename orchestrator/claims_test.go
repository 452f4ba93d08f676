package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/orchestrator"
	"github.com/functionx/fx-bridge/testutil"
	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

func TestBuildClaim(t *testing.T) {
	env := testutil.SetupGravityKeeper(t)
	orch := env.AddOrchestrators(t, 10)[0].Orchestrator.String()

	claim, err := orchestrator.BuildClaim(deposit(3, 30), orch)
	require.NoError(t, err)
	depositClaim, ok := claim.(*types.MsgDepositClaim)
	require.True(t, ok)
	require.Equal(t, uint64(3), depositClaim.EventNonce)
	require.Equal(t, uint64(30), depositClaim.BlockHeight)
	require.Equal(t, tokenContract, depositClaim.TokenContract)
	require.True(t, depositClaim.Amount.Equal(math.NewInt(300)))
	require.Equal(t, ethSender, depositClaim.EthSender)
	require.Equal(t, receiver.String(), depositClaim.Receiver)
	require.Equal(t, orch, depositClaim.Orchestrator)

	claim, err = orchestrator.BuildClaim(&bridgetypes.WithdrawEvent{EventNonce: 4, BlockHeight: 31, BatchNonce: 2, TokenContract: tokenContract}, orch)
	require.NoError(t, err)
	require.Equal(t, bridgetypes.ClaimTypeWithdraw, claim.GetType())
	require.Equal(t, uint64(2), claim.(*types.MsgWithdrawClaim).BatchNonce)

	claim, err = orchestrator.BuildClaim(&bridgetypes.OriginatedTokenEvent{
		EventNonce: 5, BlockHeight: 32, TokenContract: tokenContract, Name: "FX", Symbol: "FX", Decimals: 18,
	}, orch)
	require.NoError(t, err)
	require.Equal(t, "FX", claim.(*types.MsgOriginatedTokenClaim).Name)

	members := bridgetypes.BridgeValidators{{Power: uint64(bridgetypes.MaxPower), EthAddress: ethSender}}
	claim, err = orchestrator.BuildClaim(&bridgetypes.ValsetUpdatedEvent{EventNonce: 6, BlockHeight: 33, ValsetNonce: 2, Members: members}, orch)
	require.NoError(t, err)
	require.Equal(t, members, claim.(*types.MsgValsetUpdatedClaim).Members)

	// the claimer does not change the subject
	other, err := orchestrator.BuildClaim(deposit(3, 30), env.AddOrchestrators(t, 10)[0].Orchestrator.String())
	require.NoError(t, err)
	first, err := orchestrator.BuildClaim(deposit(3, 30), orch)
	require.NoError(t, err)
	require.Equal(t, first.ClaimHash(), other.ClaimHash())

	bad := deposit(7, 34)
	bad.Sender = "not-an-address"
	_, err = orchestrator.BuildClaim(bad, orch)
	require.ErrorIs(t, err, orchestrator.ErrMalformedEvent)

	_, err = orchestrator.BuildClaim(deposit(8, 35), "")
	require.ErrorIs(t, err, orchestrator.ErrMalformedEvent)
}

func TestSubmitterRetriesTransientFailures(t *testing.T) {
	env, hub := newTestEnv(t, 100)
	orch := env.Orchestrators[0].Orchestrator.String()

	failures := 2
	hub.Intercept = func(_ types.Msg, deliver func() error) error {
		if failures > 0 {
			failures--
			return errors.New("rpc error: code = Unavailable")
		}
		return deliver()
	}

	submitter := orchestrator.NewSubmitter(log.NewNopLogger(), hub, orch, time.Second, noRetry)
	result, err := submitter.Submit(context.Background(), deposit(1, 10))
	require.NoError(t, err)
	require.Equal(t, orchestrator.SubmitAccepted, result)
	require.Equal(t, uint64(2), submitter.Expected())
	require.Len(t, hub.Delivered, 1)

	// an event the hub already has is not sent again
	result, err = submitter.Submit(context.Background(), deposit(1, 10))
	require.NoError(t, err)
	require.Equal(t, orchestrator.SubmitDuplicate, result)
	require.Len(t, hub.Delivered, 1)
}

func TestSubmitterGivesUpAfterRetries(t *testing.T) {
	env, hub := newTestEnv(t, 100)
	hub.Intercept = func(types.Msg, func() error) error { return errors.New("connection refused") }

	submitter := orchestrator.NewSubmitter(log.NewNopLogger(), hub, env.Orchestrators[0].Orchestrator.String(), time.Second, noRetry)
	_, err := submitter.Submit(context.Background(), deposit(1, 10))
	require.Error(t, err)
	require.False(t, orchestrator.IsFatal(err))
	require.Equal(t, uint64(1), submitter.Expected(), "the claim stays next in line")
}

func TestSubmitterRejectsGapLocally(t *testing.T) {
	env, hub := newTestEnv(t, 100)
	submitter := orchestrator.NewSubmitter(log.NewNopLogger(), hub, env.Orchestrators[0].Orchestrator.String(), time.Second, noRetry)

	_, err := submitter.Submit(context.Background(), deposit(3, 10))
	require.ErrorIs(t, err, orchestrator.ErrNonceGap)
	require.Empty(t, hub.Delivered)
}

func TestSubmitterSendsNothingAfterShutdown(t *testing.T) {
	env, hub := newTestEnv(t, 100)
	submitter := orchestrator.NewSubmitter(log.NewNopLogger(), hub, env.Orchestrators[0].Orchestrator.String(), time.Second, noRetry)
	_, err := submitter.Resync(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = submitter.Submit(ctx, deposit(1, 10))
	require.ErrorIs(t, err, orchestrator.ErrShuttingDown)
	require.Empty(t, hub.Delivered)
}
