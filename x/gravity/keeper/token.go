package keeper

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/functionx/fx-bridge/x/gravity/types"
)

// GetDenomByERC20 returns the hub-originated denom mapped to a token contract
func (k Keeper) GetDenomByERC20(ctx sdk.Context, tokenContract string) (string, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetERC20ToDenomKey(gethcommon.HexToAddress(tokenContract).Hex()))
	if bz == nil {
		return "", false
	}
	return string(bz), true
}

// GetERC20ByDenom returns the token contract mapped to a hub-originated denom
func (k Keeper) GetERC20ByDenom(ctx sdk.Context, denom string) (string, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetDenomToERC20Key(denom))
	if bz == nil {
		return "", false
	}
	return string(bz), true
}

// SetERC20Mapping maps a token contract to a hub-originated denom in both directions
func (k Keeper) SetERC20Mapping(ctx sdk.Context, tokenContract, denom string) error {
	contract := gethcommon.HexToAddress(tokenContract).Hex()
	if _, found := k.GetDenomByERC20(ctx, contract); found {
		return errorsmod.Wrapf(types.ErrTokenAlreadyMapped, "contract %s", contract)
	}
	if _, found := k.GetERC20ByDenom(ctx, denom); found {
		return errorsmod.Wrapf(types.ErrTokenAlreadyMapped, "denom %s", denom)
	}
	store := ctx.KVStore(k.storeKey)
	store.Set(types.GetERC20ToDenomKey(contract), []byte(denom))
	store.Set(types.GetDenomToERC20Key(denom), []byte(contract))
	return nil
}

// GetERC20ToDenoms returns every token mapping ordered by contract
func (k Keeper) GetERC20ToDenoms(ctx sdk.Context) []types.ERC20ToDenom {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.ERC20ToDenomKey)
	defer iter.Close()

	var mappings []types.ERC20ToDenom
	for ; iter.Valid(); iter.Next() {
		mappings = append(mappings, types.ERC20ToDenom{
			Erc20: string(iter.Key()[len(types.ERC20ToDenomKey):]),
			Denom: string(iter.Value()),
		})
	}
	return mappings
}

// DenomForContract returns the hub denom of a token contract and whether the token
// originated on the hub
func (k Keeper) DenomForContract(ctx sdk.Context, tokenContract string) (string, bool) {
	if denom, found := k.GetDenomByERC20(ctx, tokenContract); found {
		return denom, true
	}
	return types.VoucherDenom(tokenContract), false
}

// ContractForDenom returns the token contract of a hub denom and whether the token
// originated on the hub
func (k Keeper) ContractForDenom(ctx sdk.Context, denom string) (string, bool, error) {
	if contract, found := k.GetERC20ByDenom(ctx, denom); found {
		return contract, true, nil
	}
	if contract, ok := types.ContractFromVoucherDenom(denom); ok {
		return contract, false, nil
	}
	return "", false, errorsmod.Wrap(types.ErrUnknownToken, denom)
}

func (k Keeper) emitTokenMapped(ctx sdk.Context, contract, denom string, eventNonce uint64) {
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTokenMapped,
			sdk.NewAttribute(types.AttributeKeyTokenContract, contract),
			sdk.NewAttribute(types.AttributeKeyDenom, denom),
			sdk.NewAttribute(types.AttributeKeyEventNonce, fmt.Sprintf("%d", eventNonce)),
		),
	)
}
