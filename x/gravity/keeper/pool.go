package keeper

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// AddToOutgoingPool locks amount and fee from sender and queues a transfer to ethDest
func (k Keeper) AddToOutgoingPool(ctx sdk.Context, sender sdk.AccAddress, ethDest string, amount, fee sdk.Coin) (uint64, error) {
	if amount.Denom != fee.Denom {
		return 0, errorsmod.Wrapf(types.ErrInvalid, "fee denom %s differs from amount denom %s", fee.Denom, amount.Denom)
	}
	contract, _, err := k.ContractForDenom(ctx, amount.Denom)
	if err != nil {
		return 0, err
	}

	locked := sdk.NewCoins(amount.Add(fee))
	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, sender, types.ModuleName, locked); err != nil {
		return 0, err
	}

	id := k.incrementUint64(ctx, types.LastTxPoolIDKey)
	tx := bridgetypes.OutgoingTransferTx{
		ID:          id,
		Sender:      sender.String(),
		DestAddress: ethDest,
		Token:       bridgetypes.ERC20Token{Contract: contract, Amount: amount.Amount},
		Fee:         bridgetypes.ERC20Token{Contract: contract, Amount: fee.Amount},
	}
	k.setPoolTx(ctx, tx)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSendToEth,
			sdk.NewAttribute(types.AttributeKeyOutgoingTxID, fmt.Sprintf("%d", id)),
			sdk.NewAttribute(types.AttributeKeyTokenContract, contract),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
		),
	)
	return id, nil
}

// RemoveFromOutgoingPoolAndRefund cancels an unbatched transfer and returns amount
// and fee to its sender
func (k Keeper) RemoveFromOutgoingPoolAndRefund(ctx sdk.Context, id uint64, sender sdk.AccAddress) error {
	tx, found := k.GetPoolTx(ctx, id)
	if !found {
		return errorsmod.Wrapf(types.ErrTxNotInPool, "id %d", id)
	}
	if tx.Sender != sender.String() {
		return errorsmod.Wrapf(types.ErrNotOwner, "transfer %d", id)
	}

	denom, _ := k.DenomForContract(ctx, tx.Token.Contract)
	refund := sdk.NewCoins(sdk.NewCoin(denom, tx.Token.Amount.Add(tx.Fee.Amount)))
	k.removePoolTx(ctx, id)
	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, sender, refund); err != nil {
		return err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCancelSendToEth,
			sdk.NewAttribute(types.AttributeKeyOutgoingTxID, fmt.Sprintf("%d", id)),
		),
	)
	return nil
}

func (k Keeper) setPoolTx(ctx sdk.Context, tx bridgetypes.OutgoingTransferTx) {
	ctx.KVStore(k.storeKey).Set(types.GetOutgoingTxPoolKey(tx.ID), k.cdc.MustMarshalJSON(tx))
}

func (k Keeper) removePoolTx(ctx sdk.Context, id uint64) {
	ctx.KVStore(k.storeKey).Delete(types.GetOutgoingTxPoolKey(id))
}

// GetPoolTx returns an unbatched transfer
func (k Keeper) GetPoolTx(ctx sdk.Context, id uint64) (bridgetypes.OutgoingTransferTx, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetOutgoingTxPoolKey(id))
	if bz == nil {
		return bridgetypes.OutgoingTransferTx{}, false
	}
	var tx bridgetypes.OutgoingTransferTx
	k.cdc.MustUnmarshalJSON(bz, &tx)
	return tx, true
}

// GetUnbatchedTransactions returns every unbatched transfer in id order
func (k Keeper) GetUnbatchedTransactions(ctx sdk.Context) []bridgetypes.OutgoingTransferTx {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.OutgoingTxPoolKey)
	defer iter.Close()

	var txs []bridgetypes.OutgoingTransferTx
	for ; iter.Valid(); iter.Next() {
		var tx bridgetypes.OutgoingTransferTx
		k.cdc.MustUnmarshalJSON(iter.Value(), &tx)
		txs = append(txs, tx)
	}
	return txs
}

// GetUnbatchedTxsByContract returns the unbatched transfers of one token contract in id order
func (k Keeper) GetUnbatchedTxsByContract(ctx sdk.Context, tokenContract string) []bridgetypes.OutgoingTransferTx {
	var txs []bridgetypes.OutgoingTransferTx
	for _, tx := range k.GetUnbatchedTransactions(ctx) {
		if tx.Token.Contract == tokenContract {
			txs = append(txs, tx)
		}
	}
	return txs
}

// GetBatchFees reports, per token contract, what a batch built now would carry
func (k Keeper) GetBatchFees(ctx sdk.Context) []bridgetypes.BatchFees {
	return types.BatchFeesFor(k.GetUnbatchedTransactions(ctx), k.GetParams(ctx))
}

// sumTransfers returns the amount and fee total of txs
func sumTransfers(txs []bridgetypes.OutgoingTransferTx) math.Int {
	total := math.ZeroInt()
	for _, tx := range txs {
		total = total.Add(tx.Token.Amount).Add(tx.Fee.Amount)
	}
	return total
}

// RestorePoolTx puts a transfer back into the pool when importing state
func (k Keeper) RestorePoolTx(ctx sdk.Context, tx bridgetypes.OutgoingTransferTx) {
	k.setPoolTx(ctx, tx)
}
