package keeper

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	gethcommon "github.com/ethereum/go-ethereum/common"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// Keeper of the gravity store
type Keeper struct {
	cdc      *codec.LegacyAmino
	storeKey storetypes.StoreKey

	bankKeeper    types.BankKeeper
	stakingKeeper types.StakingKeeper
}

// NewKeeper creates a new gravity Keeper instance
func NewKeeper(
	cdc *codec.LegacyAmino,
	storeKey storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	stakingKeeper types.StakingKeeper,
) *Keeper {
	return &Keeper{
		cdc:           cdc,
		storeKey:      storeKey,
		bankKeeper:    bankKeeper,
		stakingKeeper: stakingKeeper,
	}
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx sdk.Context) log.Logger {
	return ctx.Logger().With("module", fmt.Sprintf("x/%s", types.ModuleName))
}

// GetStoreKey returns the store key
func (k Keeper) GetStoreKey() storetypes.StoreKey {
	return k.storeKey
}

func (k Keeper) getUint64(ctx sdk.Context, key []byte) uint64 {
	bz := ctx.KVStore(k.storeKey).Get(key)
	if len(bz) == 0 {
		return 0
	}
	return sdk.BigEndianToUint64(bz)
}

func (k Keeper) setUint64(ctx sdk.Context, key []byte, value uint64) {
	ctx.KVStore(k.storeKey).Set(key, sdk.Uint64ToBigEndian(value))
}

// incrementUint64 bumps the counter at key and returns the new value
func (k Keeper) incrementUint64(ctx sdk.Context, key []byte) uint64 {
	next := k.getUint64(ctx, key) + 1
	k.setUint64(ctx, key, next)
	return next
}

// GetParams returns the module params
func (k Keeper) GetParams(ctx sdk.Context) types.Params {
	bz := ctx.KVStore(k.storeKey).Get(types.ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var params types.Params
	k.cdc.MustUnmarshalJSON(bz, &params)
	return params
}

// SetParams stores the module params
func (k Keeper) SetParams(ctx sdk.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	ctx.KVStore(k.storeKey).Set(types.ParamsKey, k.cdc.MustMarshalJSON(params))
	return nil
}

// bondedPowers returns the consensus power of every bonded validator and their sum
func (k Keeper) bondedPowers(ctx sdk.Context) (map[string]int64, math.Int, error) {
	validators, err := k.stakingKeeper.GetBondedValidatorsByPower(ctx)
	if err != nil {
		return nil, math.ZeroInt(), err
	}
	powers := make(map[string]int64, len(validators))
	total := math.ZeroInt()
	for _, val := range validators {
		power := val.GetConsensusPower(sdk.DefaultPowerReduction)
		if power <= 0 {
			continue
		}
		powers[val.OperatorAddress] = power
		total = total.AddRaw(power)
	}
	return powers, total, nil
}

// SetDelegateKey binds a validator to an orchestrator and EVM address. Each of the
// three identities may only be bound once.
func (k Keeper) SetDelegateKey(ctx sdk.Context, key types.DelegateKey) error {
	store := ctx.KVStore(k.storeKey)
	ethAddress := gethcommon.HexToAddress(key.EthAddress).Hex()
	if store.Has(types.GetOrchestratorByValidatorKey(key.Validator)) {
		return errorsmod.Wrapf(types.ErrDelegateKeyExists, "validator %s", key.Validator)
	}
	if store.Has(types.GetDelegateKeyByOrchestratorKey(key.Orchestrator)) {
		return errorsmod.Wrapf(types.ErrDelegateKeyExists, "orchestrator %s", key.Orchestrator)
	}
	if store.Has(types.GetOrchestratorByEthAddressKey(ethAddress)) {
		return errorsmod.Wrapf(types.ErrDelegateKeyExists, "eth address %s", ethAddress)
	}

	key.EthAddress = ethAddress
	store.Set(types.GetDelegateKeyByOrchestratorKey(key.Orchestrator), k.cdc.MustMarshalJSON(key))
	store.Set(types.GetOrchestratorByValidatorKey(key.Validator), []byte(key.Orchestrator))
	store.Set(types.GetOrchestratorByEthAddressKey(ethAddress), []byte(key.Orchestrator))
	return nil
}

// GetDelegateKeyByOrchestrator returns the delegate key record of an orchestrator
func (k Keeper) GetDelegateKeyByOrchestrator(ctx sdk.Context, orchestrator string) (types.DelegateKey, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetDelegateKeyByOrchestratorKey(orchestrator))
	if bz == nil {
		return types.DelegateKey{}, false
	}
	var key types.DelegateKey
	k.cdc.MustUnmarshalJSON(bz, &key)
	return key, true
}

// GetDelegateKeyByValidator returns the delegate key record of a validator
func (k Keeper) GetDelegateKeyByValidator(ctx sdk.Context, validator string) (types.DelegateKey, bool) {
	orchestrator := ctx.KVStore(k.storeKey).Get(types.GetOrchestratorByValidatorKey(validator))
	if orchestrator == nil {
		return types.DelegateKey{}, false
	}
	return k.GetDelegateKeyByOrchestrator(ctx, string(orchestrator))
}

// GetDelegateKeyByEthAddress returns the delegate key record of an EVM address
func (k Keeper) GetDelegateKeyByEthAddress(ctx sdk.Context, ethAddress string) (types.DelegateKey, bool) {
	orchestrator := ctx.KVStore(k.storeKey).Get(types.GetOrchestratorByEthAddressKey(gethcommon.HexToAddress(ethAddress).Hex()))
	if orchestrator == nil {
		return types.DelegateKey{}, false
	}
	return k.GetDelegateKeyByOrchestrator(ctx, string(orchestrator))
}

// GetDelegateKeys returns every delegate key record ordered by orchestrator
func (k Keeper) GetDelegateKeys(ctx sdk.Context) []types.DelegateKey {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.DelegateKeyByOrchestratorKey)
	defer iter.Close()

	var keys []types.DelegateKey
	for ; iter.Valid(); iter.Next() {
		var key types.DelegateKey
		k.cdc.MustUnmarshalJSON(iter.Value(), &key)
		keys = append(keys, key)
	}
	return keys
}

// GetLastEventNonceByOrchestrator returns the last event nonce accepted from orchestrator
func (k Keeper) GetLastEventNonceByOrchestrator(ctx sdk.Context, orchestrator string) uint64 {
	return k.getUint64(ctx, types.GetLastEventNonceByOrchestratorKey(orchestrator))
}

func (k Keeper) setLastEventNonceByOrchestrator(ctx sdk.Context, orchestrator string, nonce uint64) {
	k.setUint64(ctx, types.GetLastEventNonceByOrchestratorKey(orchestrator), nonce)
}

// GetLastEventBlockHeightByOrchestrator returns the EVM height of the last event accepted from orchestrator
func (k Keeper) GetLastEventBlockHeightByOrchestrator(ctx sdk.Context, orchestrator string) uint64 {
	return k.getUint64(ctx, types.GetLastEventBlockHeightByOrchestratorKey(orchestrator))
}

func (k Keeper) setLastEventBlockHeightByOrchestrator(ctx sdk.Context, orchestrator string, height uint64) {
	k.setUint64(ctx, types.GetLastEventBlockHeightByOrchestratorKey(orchestrator), height)
}

// GetLastObservedEventNonce returns the highest observed event nonce
func (k Keeper) GetLastObservedEventNonce(ctx sdk.Context) uint64 {
	return k.getUint64(ctx, types.LastObservedEventNonceKey)
}

func (k Keeper) setLastObservedEventNonce(ctx sdk.Context, nonce uint64) {
	k.setUint64(ctx, types.LastObservedEventNonceKey, nonce)
}

// GetLastObservedBlockHeight returns the hub and EVM heights of the last observation
func (k Keeper) GetLastObservedBlockHeight(ctx sdk.Context) bridgetypes.LastObservedBlockHeight {
	bz := ctx.KVStore(k.storeKey).Get(types.LastObservedBlockHeightKey)
	if bz == nil {
		return bridgetypes.LastObservedBlockHeight{}
	}
	var height bridgetypes.LastObservedBlockHeight
	k.cdc.MustUnmarshalJSON(bz, &height)
	return height
}

// SetLastObservedBlockHeight records the EVM height of an observed event at the current hub height
func (k Keeper) SetLastObservedBlockHeight(ctx sdk.Context, ethHeight uint64) {
	height := bridgetypes.LastObservedBlockHeight{
		HubBlockHeight: uint64(ctx.BlockHeight()),
		EthBlockHeight: ethHeight,
	}
	ctx.KVStore(k.storeKey).Set(types.LastObservedBlockHeightKey, k.cdc.MustMarshalJSON(height))
}

// RestoreObservationState sets the global counters when importing state
func (k Keeper) RestoreObservationState(ctx sdk.Context, lastObservedNonce uint64, height bridgetypes.LastObservedBlockHeight, lastTxPoolID uint64) {
	k.setLastObservedEventNonce(ctx, lastObservedNonce)
	ctx.KVStore(k.storeKey).Set(types.LastObservedBlockHeightKey, k.cdc.MustMarshalJSON(height))
	k.setUint64(ctx, types.LastTxPoolIDKey, lastTxPoolID)
}

// RestoreOrchestratorNonce sets an orchestrator's event progress when importing state
func (k Keeper) RestoreOrchestratorNonce(ctx sdk.Context, orchestrator string, nonce, height uint64) {
	k.setLastEventNonceByOrchestrator(ctx, orchestrator, nonce)
	k.setLastEventBlockHeightByOrchestrator(ctx, orchestrator, height)
}

// GetLastTxPoolID returns the last transfer id handed out
func (k Keeper) GetLastTxPoolID(ctx sdk.Context) uint64 {
	return k.getUint64(ctx, types.LastTxPoolIDKey)
}
