package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/testutil"
	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

func TestCurrentValsetNormalizesRegisteredValidators(t *testing.T) {
	env := testutil.SetupGravityKeeper(t)
	orchs := env.AddOrchestrators(t, 50, 30, 20)
	// bonded but never registered a delegate key
	env.Staking.SetPower(sdk.ValAddress([]byte("unregistered-validat")), 100)

	valset, err := env.Keeper.CurrentValset(env.Ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), valset.Nonce)
	require.Len(t, valset.Members, 3)
	require.Equal(t, orchs[0].EthAddress, valset.Members[0].EthAddress)
	require.Equal(t, bridgetypes.NormalizePower(math.NewInt(50), math.NewInt(100)), valset.Members[0].Power)
	require.True(t, valset.Members.TotalPower().LTE(math.NewInt(bridgetypes.MaxPower)))
}

func TestEndBlockerRequestsValsetOnPowerChange(t *testing.T) {
	env := testutil.SetupGravityKeeper(t)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))
	require.Zero(t, env.Keeper.GetLatestValsetNonce(env.Ctx), "no registered validators, no valset")

	orchs := env.AddOrchestrators(t, 40, 35, 25)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))
	require.Equal(t, uint64(1), env.Keeper.GetLatestValsetNonce(env.Ctx))

	// unchanged power does not produce a new request
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))
	require.Equal(t, uint64(1), env.Keeper.GetLatestValsetNonce(env.Ctx))

	// a one percent shift stays under the default ten percent threshold
	env.Staking.SetPower(orchs[0].Validator, 41)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))
	require.Equal(t, uint64(1), env.Keeper.GetLatestValsetNonce(env.Ctx))

	env.Staking.SetPower(orchs[2].Validator, 100)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))
	require.Equal(t, uint64(2), env.Keeper.GetLatestValsetNonce(env.Ctx))

	latest, found := env.Keeper.GetLatestValset(env.Ctx)
	require.True(t, found)
	require.Equal(t, orchs[2].EthAddress, latest.Members[0].EthAddress)
}

func TestValsetConfirm(t *testing.T) {
	env := testutil.SetupGravityKeeper(t)
	orchs := env.AddOrchestrators(t, 40, 35, 25)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))

	valset, found := env.Keeper.GetValset(env.Ctx, 1)
	require.True(t, found)
	checkpoint, err := valset.Checkpoint(env.Keeper.GetParams(env.Ctx).GravityID)
	require.NoError(t, err)

	a, b := orchs[0], orchs[1]
	confirm := func(orch testutil.TestOrchestrator, nonce uint64, sig []byte) error {
		_, err := env.Handler(env.Ctx, &types.MsgValsetConfirm{
			Nonce:        nonce,
			Orchestrator: orch.Orchestrator.String(),
			EthAddress:   orch.EthAddress,
			Signature:    sig,
		})
		return err
	}

	require.ErrorIs(t, confirm(a, 1, b.SignCheckpoint(checkpoint)), types.ErrInvalidEthSignature)
	require.ErrorIs(t, confirm(a, 2, a.SignCheckpoint(checkpoint)), types.ErrUnknownValset)

	require.Len(t, env.Keeper.GetPendingValsetsForOrchestrator(env.Ctx, a.Orchestrator.String()), 1)
	require.NoError(t, confirm(a, 1, a.SignCheckpoint(checkpoint)))
	require.ErrorIs(t, confirm(a, 1, a.SignCheckpoint(checkpoint)), types.ErrDuplicate)
	require.Empty(t, env.Keeper.GetPendingValsetsForOrchestrator(env.Ctx, a.Orchestrator.String()))
	require.Len(t, env.Keeper.GetPendingValsetsForOrchestrator(env.Ctx, b.Orchestrator.String()), 1)

	confirms := env.Keeper.GetValsetConfirms(env.Ctx, 1)
	require.Len(t, confirms, 1)
	require.Equal(t, a.EthAddress, confirms[0].EthAddress)
}

func TestObservedValsetPrunesOlderRequests(t *testing.T) {
	env := testutil.SetupGravityKeeper(t)
	orchs := env.AddOrchestrators(t, 40, 35, 25)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))
	env.Staking.SetPower(orchs[2].Validator, 100)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))
	require.Len(t, env.Keeper.GetValsets(env.Ctx), 2)

	second, found := env.Keeper.GetValset(env.Ctx, 2)
	require.True(t, found)
	for _, orch := range orchs {
		_, err := env.Handler(env.Ctx, &types.MsgValsetUpdatedClaim{
			EventNonce:   1,
			BlockHeight:  10,
			ValsetNonce:  2,
			Members:      second.Members,
			Orchestrator: orch.Orchestrator.String(),
		})
		require.NoError(t, err)
	}
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))

	valsets := env.Keeper.GetValsets(env.Ctx)
	require.Len(t, valsets, 1)
	require.Equal(t, uint64(2), valsets[0].Nonce)
}

func TestSetOrchestratorAddress(t *testing.T) {
	env := testutil.SetupGravityKeeper(t)
	orchs := env.AddOrchestrators(t, 10)

	key, found := env.Keeper.GetDelegateKeyByEthAddress(env.Ctx, orchs[0].EthAddress)
	require.True(t, found)
	require.Equal(t, orchs[0].Validator.String(), key.Validator)

	// the EVM address is already bound
	other := sdk.ValAddress([]byte("second-validator-001"))
	env.Staking.SetPower(other, 10)
	_, err := env.Handler(env.Ctx, types.NewMsgSetOrchestratorAddress(other, sdk.AccAddress([]byte("second-orchestrator1")), orchs[0].EthAddress))
	require.ErrorIs(t, err, types.ErrDelegateKeyExists)

	unbonded := sdk.ValAddress([]byte("unbonded-validator01"))
	_, err = env.Handler(env.Ctx, types.NewMsgSetOrchestratorAddress(unbonded, sdk.AccAddress([]byte("third-orchestrator01")), "0x00000000000000000000000000000000000000Ab"))
	require.ErrorIs(t, err, types.ErrValidatorNotBonded)
}
