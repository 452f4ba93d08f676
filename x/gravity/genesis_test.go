package gravity_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/testutil"
	"github.com/functionx/fx-bridge/x/gravity"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

func TestGenesisRoundTrip(t *testing.T) {
	env := testutil.SetupGravityKeeper(t)
	orchs := env.AddOrchestrators(t, 40, 35, 25)
	require.NoError(t, env.Keeper.EndBlocker(env.Ctx))

	contract := gethcommon.HexToAddress("0x2170ed0880ac9a755fd29b2688956bd959f933f8").Hex()
	sender := sdk.AccAddress([]byte("genesis-sender-00001"))
	for _, orch := range orchs {
		_, err := env.Handler(env.Ctx, &types.MsgDepositClaim{
			EventNonce: 1, BlockHeight: 20, TokenContract: contract, Amount: math.NewInt(1000),
			EthSender: orchs[0].EthAddress, Receiver: sender.String(), Orchestrator: orch.Orchestrator.String(),
		})
		require.NoError(t, err)
	}
	// a second event that only one orchestrator has reported so far
	_, err := env.Handler(env.Ctx, &types.MsgOriginatedTokenClaim{
		EventNonce: 2, BlockHeight: 21, TokenContract: orchs[1].EthAddress,
		Name: "ufx", Symbol: "FX", Decimals: 18, Orchestrator: orchs[0].Orchestrator.String(),
	})
	require.NoError(t, err)

	for _, fee := range []int64{3, 4, 5} {
		_, err := env.Handler(env.Ctx, &types.MsgSendToEth{
			Sender:    sender.String(),
			EthDest:   orchs[2].EthAddress,
			Amount:    sdk.NewInt64Coin(types.VoucherDenom(contract), 100),
			BridgeFee: sdk.NewInt64Coin(types.VoucherDenom(contract), fee),
		})
		require.NoError(t, err)
	}
	params := env.Keeper.GetParams(env.Ctx)
	params.BatchMaxElements = 2
	require.NoError(t, env.Keeper.SetParams(env.Ctx, params))
	batch, err := env.Keeper.BuildOutgoingTxBatch(env.Ctx, contract, math.ZeroInt(), "")
	require.NoError(t, err)

	batchCheckpoint, err := batch.Checkpoint(params.GravityID)
	require.NoError(t, err)
	_, err = env.Handler(env.Ctx, &types.MsgConfirmBatch{
		Nonce: batch.BatchNonce, TokenContract: contract, EthSigner: orchs[0].EthAddress,
		Orchestrator: orchs[0].Orchestrator.String(), Signature: orchs[0].SignCheckpoint(batchCheckpoint),
	})
	require.NoError(t, err)

	valset, found := env.Keeper.GetLatestValset(env.Ctx)
	require.True(t, found)
	valsetCheckpoint, err := valset.Checkpoint(params.GravityID)
	require.NoError(t, err)
	_, err = env.Handler(env.Ctx, &types.MsgValsetConfirm{
		Nonce: valset.Nonce, Orchestrator: orchs[1].Orchestrator.String(),
		EthAddress: orchs[1].EthAddress, Signature: orchs[1].SignCheckpoint(valsetCheckpoint),
	})
	require.NoError(t, err)

	exported := gravity.ExportGenesis(env.Ctx, *env.Keeper)
	require.NoError(t, gravity.ValidateGenesis(exported))
	require.Equal(t, uint64(1), exported.LastObservedNonce)
	require.Len(t, exported.Attestations, 2)
	require.Len(t, exported.Batches, 1)
	require.Len(t, exported.UnbatchedTransfers, 1)
	require.Len(t, exported.DelegateKeys, 3)

	restored := testutil.SetupGravityKeeper(t)
	gravity.InitGenesis(restored.Ctx, *restored.Keeper, exported)
	reexported := gravity.ExportGenesis(restored.Ctx, *restored.Keeper)

	require.Equal(t,
		string(types.ModuleCdc.MustMarshalJSON(exported)),
		string(types.ModuleCdc.MustMarshalJSON(reexported)),
	)

	// the restored hub keeps counting where the exported one stopped
	require.Equal(t, uint64(2), restored.Keeper.GetLastEventNonceByOrchestrator(restored.Ctx, orchs[0].Orchestrator.String()))
	restored.Bank.Fund(sender, sdk.NewInt64Coin(types.VoucherDenom(contract), 1000))
	id, err := restored.Keeper.AddToOutgoingPool(restored.Ctx, sender, orchs[2].EthAddress,
		sdk.NewInt64Coin(types.VoucherDenom(contract), 10), sdk.NewInt64Coin(types.VoucherDenom(contract), 50))
	require.NoError(t, err)
	require.Equal(t, uint64(4), id)
	next, err := restored.Keeper.BuildOutgoingTxBatch(restored.Ctx, contract, math.ZeroInt(), "")
	require.NoError(t, err)
	require.Equal(t, batch.BatchNonce+1, next.BatchNonce)
}

func TestValidateGenesis(t *testing.T) {
	require.NoError(t, gravity.ValidateGenesis(gravity.DefaultGenesisState()))

	state := gravity.DefaultGenesisState()
	state.Params.AverageEthBlockTime = 0
	require.Error(t, gravity.ValidateGenesis(state))

	state = gravity.DefaultGenesisState()
	state.DelegateKeys = []types.DelegateKey{{Validator: "val", Orchestrator: "orch", EthAddress: "0x12"}}
	require.Error(t, gravity.ValidateGenesis(state))
}
