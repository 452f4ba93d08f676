package types_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/testutil"
	"github.com/functionx/fx-bridge/types"
)

const testContract = "0x2170Ed0880ac9A755fd29B2688956BD959F933F8"

func TestProperty_BatchSelectionIsDeterministic(t *testing.T) {
	properties := testutil.NewPropertyTester(t)

	properties.Property("selection does not depend on pool order", prop.ForAll(
		func(pool []types.OutgoingTransferTx, seed int64, maxElements uint64, floor int64) bool {
			a := types.SelectBatchTxs(pool, maxElements, math.NewInt(floor))
			b := types.SelectBatchTxs(testutil.Shuffle(pool, seed), maxElements, math.NewInt(floor))
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i].ID != b[i].ID {
					return false
				}
			}
			return true
		},
		testutil.GenOutgoingPool(testContract),
		gen.Int64(),
		gen.UInt64Range(0, 30),
		gen.Int64Range(0, 500),
	))

	properties.Property("selected transfers clear the floor and are fee ordered", prop.ForAll(
		func(pool []types.OutgoingTransferTx, maxElements uint64, floor int64) bool {
			selected := types.SelectBatchTxs(pool, maxElements, math.NewInt(floor))
			if uint64(len(selected)) > maxElements {
				return false
			}
			for i, tx := range selected {
				if tx.Fee.Amount.LT(math.NewInt(floor)) {
					return false
				}
				if i == 0 {
					continue
				}
				prev := selected[i-1]
				if prev.Fee.Amount.LT(tx.Fee.Amount) {
					return false
				}
				if prev.Fee.Amount.Equal(tx.Fee.Amount) && prev.ID > tx.ID {
					return false
				}
			}
			return true
		},
		testutil.GenOutgoingPool(testContract),
		gen.UInt64Range(0, 30),
		gen.Int64Range(0, 500),
	))

	properties.TestingRun(t)
}

func TestSelectBatchTxs(t *testing.T) {
	tx := func(id uint64, fee int64) types.OutgoingTransferTx {
		return types.OutgoingTransferTx{
			ID:    id,
			Token: types.ERC20Token{Contract: testContract, Amount: math.NewInt(100)},
			Fee:   types.ERC20Token{Contract: testContract, Amount: math.NewInt(fee)},
		}
	}
	pool := []types.OutgoingTransferTx{tx(1, 5), tx(2, 9), tx(3, 9), tx(4, 1), tx(5, 7)}

	selected := types.SelectBatchTxs(pool, 3, math.NewInt(2))
	require.Len(t, selected, 3)
	require.Equal(t, []uint64{2, 3, 5}, []uint64{selected[0].ID, selected[1].ID, selected[2].ID})
	require.True(t, types.TotalFees(selected).Equal(math.NewInt(25)))

	require.Len(t, types.SelectBatchTxs(pool, 10, math.NewInt(6)), 3)
	require.Empty(t, types.SelectBatchTxs(pool, 10, math.NewInt(100)))
	require.Empty(t, types.SelectBatchTxs(pool, 0, math.ZeroInt()))
	require.Empty(t, types.SelectBatchTxs(nil, 10, math.ZeroInt()))

	// the input snapshot is left untouched
	require.Equal(t, uint64(1), pool[0].ID)
}

func TestThresholdReached(t *testing.T) {
	total := math.NewInt(100)
	require.True(t, types.ThresholdReached(math.NewInt(75), total))
	require.False(t, types.ThresholdReached(math.NewInt(40), total))
	require.False(t, types.ThresholdReached(math.NewInt(66), total))
	require.True(t, types.ThresholdReached(math.NewInt(67), total))
	require.True(t, types.ThresholdReached(math.NewInt(2), math.NewInt(3)))
	require.False(t, types.ThresholdReached(math.ZeroInt(), math.ZeroInt()))
}

func TestProperty_ThresholdMatchesExactArithmetic(t *testing.T) {
	properties := testutil.NewPropertyTester(t)

	properties.Property("threshold is 3*power >= 2*total", prop.ForAll(
		func(power, total int64) bool {
			if power > total {
				power, total = total, power
			}
			expected := total > 0 && 3*power >= 2*total
			return types.ThresholdReached(math.NewInt(power), math.NewInt(total)) == expected
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}

func TestBridgeValidatorsSortAndPowerDiff(t *testing.T) {
	members := types.BridgeValidators{
		{Power: 10, EthAddress: "0x00000000000000000000000000000000000000bb"},
		{Power: 30, EthAddress: "0x00000000000000000000000000000000000000cc"},
		{Power: 10, EthAddress: "0x00000000000000000000000000000000000000aa"},
	}
	members.Sort()
	require.Equal(t, uint64(30), members[0].Power)
	require.Equal(t, "0x00000000000000000000000000000000000000aa", members[1].EthAddress)
	require.True(t, members.TotalPower().Equal(math.NewInt(50)))

	half := uint64(types.MaxPower / 2)
	a := types.BridgeValidators{
		{Power: half, EthAddress: "0x00000000000000000000000000000000000000aa"},
		{Power: half, EthAddress: "0x00000000000000000000000000000000000000bb"},
	}
	require.True(t, a.PowerDiff(a).IsZero())

	b := types.BridgeValidators{
		{Power: uint64(types.MaxPower), EthAddress: "0x00000000000000000000000000000000000000aa"},
	}
	require.True(t, a.PowerDiff(b).Equal(math.LegacyOneDec()))
}

func TestNormalizePower(t *testing.T) {
	require.Equal(t, uint64(types.MaxPower/2), types.NormalizePower(math.NewInt(50), math.NewInt(100)))
	require.Equal(t, uint64(types.MaxPower), types.NormalizePower(math.NewInt(7), math.NewInt(7)))
	require.Zero(t, types.NormalizePower(math.NewInt(7), math.ZeroInt()))
}

func TestCheckpointSignatureRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	valset := types.Valset{
		Nonce: 3,
		Members: types.BridgeValidators{
			{Power: uint64(types.MaxPower), EthAddress: signer.Hex()},
		},
	}
	checkpoint, err := valset.Checkpoint("fx-bridge-eth")
	require.NoError(t, err)
	require.Len(t, checkpoint, 32)

	other, err := valset.Checkpoint("other-id")
	require.NoError(t, err)
	require.NotEqual(t, checkpoint, other)

	sig, err := crypto.Sign(accounts.TextHash(checkpoint), key)
	require.NoError(t, err)
	sig[64] += 27

	require.NoError(t, types.ValidateEthSignature(checkpoint, sig, signer.Hex()))
	require.ErrorIs(t, types.ValidateEthSignature(other, sig, signer.Hex()), types.ErrInvalidSignature)
	require.ErrorIs(t, types.ValidateEthSignature(checkpoint, sig[:64], signer.Hex()), types.ErrInvalidSignature)

	_, err = types.Valset{Nonce: 1}.Checkpoint("fx-bridge-eth")
	require.ErrorIs(t, err, types.ErrEmptyValset)
}

func TestBatchCheckpointChangesWithContent(t *testing.T) {
	batch := types.OutgoingTxBatch{
		BatchNonce:    1,
		BatchTimeout:  1000,
		TokenContract: testContract,
		Transactions: []types.OutgoingTransferTx{{
			ID:          1,
			DestAddress: "0x00000000000000000000000000000000000000aa",
			Token:       types.ERC20Token{Contract: testContract, Amount: math.NewInt(100)},
			Fee:         types.ERC20Token{Contract: testContract, Amount: math.NewInt(3)},
		}},
	}
	first, err := batch.Checkpoint("fx-bridge-eth")
	require.NoError(t, err)

	batch.BatchNonce = 2
	second, err := batch.Checkpoint("fx-bridge-eth")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	batch.Transactions[0].DestAddress = "not-an-address"
	_, err = batch.Checkpoint("fx-bridge-eth")
	require.ErrorIs(t, err, types.ErrInvalidEthAddress)
}

func TestChainEventValidate(t *testing.T) {
	deposit := &types.DepositEvent{
		EventNonce:    1,
		BlockHeight:   10,
		TokenContract: testContract,
		Amount:        math.NewInt(5),
		Sender:        "0x00000000000000000000000000000000000000aa",
		Receiver:      "fx1receiver",
	}
	require.NoError(t, deposit.Validate())
	require.Equal(t, types.ClaimTypeDeposit, deposit.GetType())

	deposit.Amount = math.ZeroInt()
	require.ErrorIs(t, deposit.Validate(), types.ErrInvalidEvent)

	withdraw := &types.WithdrawEvent{EventNonce: 2, BatchNonce: 1, TokenContract: "0x1234"}
	require.ErrorIs(t, withdraw.Validate(), types.ErrInvalidEthAddress)

	valset := &types.ValsetUpdatedEvent{EventNonce: 3, ValsetNonce: 1}
	require.ErrorIs(t, valset.Validate(), types.ErrInvalidEvent)
}
