package keeper

import (
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// CurrentValset builds the signer set from bonded validators with a registered EVM
// address. Powers are normalized so the set sums to at most MaxPower.
func (k Keeper) CurrentValset(ctx sdk.Context) (bridgetypes.Valset, error) {
	validators, err := k.stakingKeeper.GetBondedValidatorsByPower(ctx)
	if err != nil {
		return bridgetypes.Valset{}, err
	}

	type member struct {
		power      int64
		ethAddress string
	}
	var registered []member
	total := math.ZeroInt()
	for _, val := range validators {
		power := val.GetConsensusPower(sdk.DefaultPowerReduction)
		if power <= 0 {
			continue
		}
		key, found := k.GetDelegateKeyByValidator(ctx, val.OperatorAddress)
		if !found {
			continue
		}
		registered = append(registered, member{power: power, ethAddress: key.EthAddress})
		total = total.AddRaw(power)
	}

	members := make(bridgetypes.BridgeValidators, 0, len(registered))
	for _, m := range registered {
		members = append(members, bridgetypes.BridgeValidator{
			Power:      bridgetypes.NormalizePower(math.NewInt(m.power), total),
			EthAddress: m.ethAddress,
		})
	}
	members.Sort()

	return bridgetypes.Valset{
		Nonce:   k.GetLatestValsetNonce(ctx) + 1,
		Members: members,
		Height:  uint64(ctx.BlockHeight()),
	}, nil
}

// SetValsetRequest snapshots the current valset under the next valset nonce so
// orchestrators can sign it
func (k Keeper) SetValsetRequest(ctx sdk.Context) (bridgetypes.Valset, error) {
	valset, err := k.CurrentValset(ctx)
	if err != nil {
		return bridgetypes.Valset{}, err
	}
	if len(valset.Members) == 0 {
		return bridgetypes.Valset{}, bridgetypes.ErrEmptyValset
	}
	k.StoreValset(ctx, valset)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeValsetRequest,
			sdk.NewAttribute(types.AttributeKeyValsetNonce, fmt.Sprintf("%d", valset.Nonce)),
		),
	)
	k.Logger(ctx).Info("valset requested", "valset_nonce", valset.Nonce, "members", len(valset.Members))
	return valset, nil
}

// StoreValset stores a valset and advances the latest valset nonce when it is newer
func (k Keeper) StoreValset(ctx sdk.Context, valset bridgetypes.Valset) {
	ctx.KVStore(k.storeKey).Set(types.GetValsetKey(valset.Nonce), k.cdc.MustMarshalJSON(valset))
	if valset.Nonce > k.GetLatestValsetNonce(ctx) {
		k.setUint64(ctx, types.LatestValsetNonceKey, valset.Nonce)
	}
}

// GetLatestValsetNonce returns the nonce of the newest valset request
func (k Keeper) GetLatestValsetNonce(ctx sdk.Context) uint64 {
	return k.getUint64(ctx, types.LatestValsetNonceKey)
}

// GetValset returns the valset request at nonce
func (k Keeper) GetValset(ctx sdk.Context, nonce uint64) (bridgetypes.Valset, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetValsetKey(nonce))
	if bz == nil {
		return bridgetypes.Valset{}, false
	}
	var valset bridgetypes.Valset
	k.cdc.MustUnmarshalJSON(bz, &valset)
	return valset, true
}

// GetLatestValset returns the newest valset request
func (k Keeper) GetLatestValset(ctx sdk.Context) (bridgetypes.Valset, bool) {
	return k.GetValset(ctx, k.GetLatestValsetNonce(ctx))
}

// GetValsets returns every stored valset request in nonce order
func (k Keeper) GetValsets(ctx sdk.Context) []bridgetypes.Valset {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.ValsetRequestKey)
	defer iter.Close()

	var valsets []bridgetypes.Valset
	for ; iter.Valid(); iter.Next() {
		var valset bridgetypes.Valset
		k.cdc.MustUnmarshalJSON(iter.Value(), &valset)
		valsets = append(valsets, valset)
	}
	return valsets
}

func (k Keeper) deleteValset(ctx sdk.Context, nonce uint64) {
	store := ctx.KVStore(k.storeKey)
	store.Delete(types.GetValsetKey(nonce))
	for _, confirm := range k.GetValsetConfirms(ctx, nonce) {
		store.Delete(types.GetValsetConfirmKey(nonce, confirm.Orchestrator))
	}
}

// SetValsetConfirm stores an orchestrator's valset signature
func (k Keeper) SetValsetConfirm(ctx sdk.Context, confirm types.MsgValsetConfirm) {
	ctx.KVStore(k.storeKey).Set(types.GetValsetConfirmKey(confirm.Nonce, confirm.Orchestrator), k.cdc.MustMarshalJSON(confirm))
}

// GetValsetConfirm returns an orchestrator's signature for a valset
func (k Keeper) GetValsetConfirm(ctx sdk.Context, nonce uint64, orchestrator string) (types.MsgValsetConfirm, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetValsetConfirmKey(nonce, orchestrator))
	if bz == nil {
		return types.MsgValsetConfirm{}, false
	}
	var confirm types.MsgValsetConfirm
	k.cdc.MustUnmarshalJSON(bz, &confirm)
	return confirm, true
}

// GetValsetConfirms returns every signature collected for a valset
func (k Keeper) GetValsetConfirms(ctx sdk.Context, nonce uint64) []types.MsgValsetConfirm {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.GetValsetConfirmKeyPrefix(nonce))
	defer iter.Close()

	var confirms []types.MsgValsetConfirm
	for ; iter.Valid(); iter.Next() {
		var confirm types.MsgValsetConfirm
		k.cdc.MustUnmarshalJSON(iter.Value(), &confirm)
		confirms = append(confirms, confirm)
	}
	return confirms
}

// GetPendingValsetsForOrchestrator returns the valsets orchestrator has not signed, oldest first
func (k Keeper) GetPendingValsetsForOrchestrator(ctx sdk.Context, orchestrator string) []bridgetypes.Valset {
	var pending []bridgetypes.Valset
	for _, valset := range k.GetValsets(ctx) {
		if _, found := k.GetValsetConfirm(ctx, valset.Nonce, orchestrator); !found {
			pending = append(pending, valset)
		}
	}
	return pending
}

// GetLastObservedValset returns the valset the bridge contract last reported
func (k Keeper) GetLastObservedValset(ctx sdk.Context) (bridgetypes.Valset, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.LastObservedValsetKey)
	if bz == nil {
		return bridgetypes.Valset{}, false
	}
	var valset bridgetypes.Valset
	k.cdc.MustUnmarshalJSON(bz, &valset)
	return valset, true
}

// SetLastObservedValset records the valset the bridge contract switched to
func (k Keeper) SetLastObservedValset(ctx sdk.Context, valset bridgetypes.Valset) {
	ctx.KVStore(k.storeKey).Set(types.LastObservedValsetKey, k.cdc.MustMarshalJSON(valset))
}

// createValsetRequestIfNeeded snapshots a new valset when none exists yet or when
// bonded power moved by more than the configured fraction since the latest one
func (k Keeper) createValsetRequestIfNeeded(ctx sdk.Context) {
	current, err := k.CurrentValset(ctx)
	if err != nil {
		k.Logger(ctx).Error("could not build current valset", "error", err)
		return
	}
	if len(current.Members) == 0 {
		return
	}

	latest, found := k.GetLatestValset(ctx)
	if found {
		threshold := k.GetParams(ctx).ValsetUpdatePowerChangePercent
		if !latest.Members.PowerDiff(current.Members).GT(threshold) {
			return
		}
	}
	if _, err := k.SetValsetRequest(ctx); err != nil {
		k.Logger(ctx).Error("could not store valset request", "error", err)
	}
}

// pruneValsets drops valsets older than the one the bridge contract last reported
func (k Keeper) pruneValsets(ctx sdk.Context) {
	observed, found := k.GetLastObservedValset(ctx)
	if !found {
		return
	}
	for _, valset := range k.GetValsets(ctx) {
		if valset.Nonce >= observed.Nonce {
			return
		}
		k.deleteValset(ctx, valset.Nonce)
	}
}
