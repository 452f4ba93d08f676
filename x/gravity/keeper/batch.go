package keeper

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-metrics"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// BuildOutgoingTxBatch freezes the most profitable unbatched transfers of a token
// contract into a new batch. Selection is a pure function of the pool and params;
// the batch must carry at least minimumFee and beat the fee of the newest pending
// batch of the same contract.
func (k Keeper) BuildOutgoingTxBatch(ctx sdk.Context, tokenContract string, minimumFee math.Int, feeReceive string) (*bridgetypes.OutgoingTxBatch, error) {
	tokenContract = gethcommon.HexToAddress(tokenContract).Hex()
	if minimumFee.IsNil() {
		minimumFee = math.ZeroInt()
	}
	params := k.GetParams(ctx)

	pool := k.GetUnbatchedTxsByContract(ctx, tokenContract)
	if len(pool) == 0 {
		return nil, errorsmod.Wrap(types.ErrNoUnbatchedTxs, tokenContract)
	}
	selected := bridgetypes.SelectBatchTxs(pool, params.BatchMaxElements, params.BatchFeeFloor)
	if len(selected) == 0 {
		return nil, errorsmod.Wrapf(types.ErrBatchNotProfitable, "no transfer pays the fee floor %s", params.BatchFeeFloor)
	}
	totalFee := bridgetypes.TotalFees(selected)
	if totalFee.LT(minimumFee) {
		return nil, errorsmod.Wrapf(types.ErrBatchNotProfitable, "total fee %s below minimum %s", totalFee, minimumFee)
	}
	if last, found := k.GetLastOutgoingBatchByContract(ctx, tokenContract); found && last.TotalFee().GTE(totalFee) {
		return nil, errorsmod.Wrapf(types.ErrBatchNotProfitable, "pending batch %d already carries fee %s", last.BatchNonce, last.TotalFee())
	}

	nonce := k.incrementUint64(ctx, types.GetLastBatchNonceByContractKey(tokenContract))
	batch := &bridgetypes.OutgoingTxBatch{
		BatchNonce:    nonce,
		BatchTimeout:  k.getBatchTimeoutHeight(ctx, params),
		Transactions:  selected,
		TokenContract: tokenContract,
		Block:         uint64(ctx.BlockHeight()),
		FeeReceive:    feeReceive,
	}
	for _, tx := range selected {
		k.removePoolTx(ctx, tx.ID)
	}
	k.StoreBatch(ctx, batch)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeOutgoingBatch,
			sdk.NewAttribute(types.AttributeKeyTokenContract, tokenContract),
			sdk.NewAttribute(types.AttributeKeyBatchNonce, fmt.Sprintf("%d", nonce)),
			sdk.NewAttribute(types.AttributeKeyTxCount, fmt.Sprintf("%d", len(selected))),
		),
	)
	metrics.IncrCounterWithLabels([]string{types.ModuleName, "batch", "built"}, 1,
		[]metrics.Label{{Name: "token_contract", Value: tokenContract}})
	k.Logger(ctx).Info("batch built",
		"token_contract", tokenContract,
		"batch_nonce", nonce,
		"txs", len(selected),
		"total_fee", totalFee.String(),
	)
	return batch, nil
}

// projectedEthHeight extrapolates the EVM height from the last observation using the
// average block times
func (k Keeper) projectedEthHeight(ctx sdk.Context, params types.Params) uint64 {
	heights := k.GetLastObservedBlockHeight(ctx)
	current := uint64(ctx.BlockHeight())
	if current <= heights.HubBlockHeight {
		return heights.EthBlockHeight
	}
	elapsedMillis := (current - heights.HubBlockHeight) * params.AverageBlockTime
	return heights.EthBlockHeight + elapsedMillis/params.AverageEthBlockTime
}

func (k Keeper) getBatchTimeoutHeight(ctx sdk.Context, params types.Params) uint64 {
	return k.projectedEthHeight(ctx, params) + params.TargetBatchTimeout/params.AverageEthBlockTime
}

// StoreBatch stores a batch and keeps the contract's nonce counter at or above it
func (k Keeper) StoreBatch(ctx sdk.Context, batch *bridgetypes.OutgoingTxBatch) {
	ctx.KVStore(k.storeKey).Set(types.GetOutgoingTxBatchKey(batch.TokenContract, batch.BatchNonce), k.cdc.MustMarshalJSON(batch))
	counter := types.GetLastBatchNonceByContractKey(batch.TokenContract)
	if batch.BatchNonce > k.getUint64(ctx, counter) {
		k.setUint64(ctx, counter, batch.BatchNonce)
	}
}

// GetLastBatchNonces returns the batch nonce counter of every token contract that ever had a batch
func (k Keeper) GetLastBatchNonces(ctx sdk.Context) []types.ContractNonce {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.LastBatchNonceByContractKey)
	defer iter.Close()

	var nonces []types.ContractNonce
	for ; iter.Valid(); iter.Next() {
		nonces = append(nonces, types.ContractNonce{
			TokenContract: string(iter.Key()[len(types.LastBatchNonceByContractKey):]),
			Nonce:         sdk.BigEndianToUint64(iter.Value()),
		})
	}
	return nonces
}

// SetLastBatchNonce restores a token contract's batch nonce counter
func (k Keeper) SetLastBatchNonce(ctx sdk.Context, tokenContract string, nonce uint64) {
	k.setUint64(ctx, types.GetLastBatchNonceByContractKey(gethcommon.HexToAddress(tokenContract).Hex()), nonce)
}

func (k Keeper) deleteBatch(ctx sdk.Context, batch *bridgetypes.OutgoingTxBatch) {
	store := ctx.KVStore(k.storeKey)
	store.Delete(types.GetOutgoingTxBatchKey(batch.TokenContract, batch.BatchNonce))
	for _, confirm := range k.GetBatchConfirms(ctx, batch.TokenContract, batch.BatchNonce) {
		store.Delete(types.GetBatchConfirmKey(batch.TokenContract, batch.BatchNonce, confirm.Orchestrator))
	}
}

// GetOutgoingTxBatch returns a pending batch
func (k Keeper) GetOutgoingTxBatch(ctx sdk.Context, tokenContract string, nonce uint64) (*bridgetypes.OutgoingTxBatch, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetOutgoingTxBatchKey(gethcommon.HexToAddress(tokenContract).Hex(), nonce))
	if bz == nil {
		return nil, false
	}
	var batch bridgetypes.OutgoingTxBatch
	k.cdc.MustUnmarshalJSON(bz, &batch)
	return &batch, true
}

func (k Keeper) iterateBatches(ctx sdk.Context, prefix []byte) []*bridgetypes.OutgoingTxBatch {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), prefix)
	defer iter.Close()

	var batches []*bridgetypes.OutgoingTxBatch
	for ; iter.Valid(); iter.Next() {
		var batch bridgetypes.OutgoingTxBatch
		k.cdc.MustUnmarshalJSON(iter.Value(), &batch)
		batches = append(batches, &batch)
	}
	return batches
}

// GetOutgoingTxBatches returns every pending batch ordered by token contract then nonce
func (k Keeper) GetOutgoingTxBatches(ctx sdk.Context) []*bridgetypes.OutgoingTxBatch {
	return k.iterateBatches(ctx, types.OutgoingTxBatchKey)
}

// GetOutgoingTxBatchesByContract returns the pending batches of a token contract in nonce order
func (k Keeper) GetOutgoingTxBatchesByContract(ctx sdk.Context, tokenContract string) []*bridgetypes.OutgoingTxBatch {
	return k.iterateBatches(ctx, types.GetOutgoingTxBatchContractPrefix(gethcommon.HexToAddress(tokenContract).Hex()))
}

// GetLastOutgoingBatchByContract returns the pending batch of a token contract with the highest nonce
func (k Keeper) GetLastOutgoingBatchByContract(ctx sdk.Context, tokenContract string) (*bridgetypes.OutgoingTxBatch, bool) {
	batches := k.GetOutgoingTxBatchesByContract(ctx, tokenContract)
	if len(batches) == 0 {
		return nil, false
	}
	return batches[len(batches)-1], true
}

// OutgoingTxBatchExecuted settles a batch the bridge contract executed. Earlier
// batches of the same contract can no longer execute and are canceled.
func (k Keeper) OutgoingTxBatchExecuted(ctx sdk.Context, tokenContract string, nonce uint64) error {
	batch, found := k.GetOutgoingTxBatch(ctx, tokenContract, nonce)
	if !found {
		return errorsmod.Wrapf(types.ErrUnknownBatch, "token %s nonce %d", tokenContract, nonce)
	}

	denom, hubOriginated := k.DenomForContract(ctx, batch.TokenContract)
	if !hubOriginated {
		burn := sdk.NewCoins(sdk.NewCoin(denom, sumTransfers(batch.Transactions)))
		if err := k.bankKeeper.BurnCoins(ctx, types.ModuleName, burn); err != nil {
			return errorsmod.Wrapf(err, "burn %s", burn)
		}
	}

	for _, earlier := range k.GetOutgoingTxBatchesByContract(ctx, batch.TokenContract) {
		if earlier.BatchNonce >= nonce {
			break
		}
		if err := k.CancelOutgoingTxBatch(ctx, earlier.TokenContract, earlier.BatchNonce); err != nil {
			return err
		}
	}
	k.deleteBatch(ctx, batch)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeBatchExecuted,
			sdk.NewAttribute(types.AttributeKeyTokenContract, batch.TokenContract),
			sdk.NewAttribute(types.AttributeKeyBatchNonce, fmt.Sprintf("%d", nonce)),
		),
	)
	return nil
}

// CancelOutgoingTxBatch returns a batch's transfers to the pool and drops the batch
func (k Keeper) CancelOutgoingTxBatch(ctx sdk.Context, tokenContract string, nonce uint64) error {
	batch, found := k.GetOutgoingTxBatch(ctx, tokenContract, nonce)
	if !found {
		return errorsmod.Wrapf(types.ErrUnknownBatch, "token %s nonce %d", tokenContract, nonce)
	}
	for _, tx := range batch.Transactions {
		k.setPoolTx(ctx, tx)
	}
	k.deleteBatch(ctx, batch)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeOutgoingBatchCanceled,
			sdk.NewAttribute(types.AttributeKeyTokenContract, batch.TokenContract),
			sdk.NewAttribute(types.AttributeKeyBatchNonce, fmt.Sprintf("%d", nonce)),
		),
	)
	return nil
}

// cancelTimedOutBatches cancels batches whose timeout the EVM chain has passed
func (k Keeper) cancelTimedOutBatches(ctx sdk.Context) {
	ethHeight := k.GetLastObservedBlockHeight(ctx).EthBlockHeight
	for _, batch := range k.GetOutgoingTxBatches(ctx) {
		if batch.BatchTimeout >= ethHeight {
			continue
		}
		if err := k.CancelOutgoingTxBatch(ctx, batch.TokenContract, batch.BatchNonce); err != nil {
			k.Logger(ctx).Error("could not cancel timed out batch",
				"token_contract", batch.TokenContract,
				"batch_nonce", batch.BatchNonce,
				"error", err,
			)
		}
	}
}

// SetBatchConfirm stores an orchestrator's batch signature
func (k Keeper) SetBatchConfirm(ctx sdk.Context, confirm types.MsgConfirmBatch) {
	key := types.GetBatchConfirmKey(confirm.TokenContract, confirm.Nonce, confirm.Orchestrator)
	ctx.KVStore(k.storeKey).Set(key, k.cdc.MustMarshalJSON(confirm))
}

// GetBatchConfirm returns an orchestrator's signature for a batch
func (k Keeper) GetBatchConfirm(ctx sdk.Context, tokenContract string, nonce uint64, orchestrator string) (types.MsgConfirmBatch, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetBatchConfirmKey(tokenContract, nonce, orchestrator))
	if bz == nil {
		return types.MsgConfirmBatch{}, false
	}
	var confirm types.MsgConfirmBatch
	k.cdc.MustUnmarshalJSON(bz, &confirm)
	return confirm, true
}

// GetBatchConfirms returns every signature collected for a batch
func (k Keeper) GetBatchConfirms(ctx sdk.Context, tokenContract string, nonce uint64) []types.MsgConfirmBatch {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.GetBatchConfirmKeyPrefix(tokenContract, nonce))
	defer iter.Close()

	var confirms []types.MsgConfirmBatch
	for ; iter.Valid(); iter.Next() {
		var confirm types.MsgConfirmBatch
		k.cdc.MustUnmarshalJSON(iter.Value(), &confirm)
		confirms = append(confirms, confirm)
	}
	return confirms
}

// GetPendingBatchesForOrchestrator returns the batches orchestrator has not signed
func (k Keeper) GetPendingBatchesForOrchestrator(ctx sdk.Context, orchestrator string) []*bridgetypes.OutgoingTxBatch {
	var pending []*bridgetypes.OutgoingTxBatch
	for _, batch := range k.GetOutgoingTxBatches(ctx) {
		if _, found := k.GetBatchConfirm(ctx, batch.TokenContract, batch.BatchNonce, orchestrator); !found {
			pending = append(pending, batch)
		}
	}
	return pending
}
