package keeper

import (
	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// handleClaim applies the effect of an observed claim
func (k Keeper) handleClaim(ctx sdk.Context, claim types.EthereumClaim) error {
	switch claim := claim.(type) {
	case *types.MsgDepositClaim:
		return k.handleDeposit(ctx, claim)

	case *types.MsgWithdrawClaim:
		return k.OutgoingTxBatchExecuted(ctx, claim.TokenContract, claim.BatchNonce)

	case *types.MsgOriginatedTokenClaim:
		if err := sdk.ValidateDenom(claim.Name); err != nil {
			return errorsmod.Wrapf(types.ErrInvalidClaim, "denom %q: %s", claim.Name, err)
		}
		if err := k.SetERC20Mapping(ctx, claim.TokenContract, claim.Name); err != nil {
			return err
		}
		k.emitTokenMapped(ctx, claim.TokenContract, claim.Name, claim.EventNonce)
		return nil

	case *types.MsgValsetUpdatedClaim:
		k.SetLastObservedValset(ctx, bridgetypes.Valset{
			Nonce:   claim.ValsetNonce,
			Members: claim.Members,
			Height:  claim.BlockHeight,
		})
		return nil

	default:
		return errorsmod.Wrapf(types.ErrInvalidClaim, "unknown claim type %T", claim)
	}
}

// handleDeposit credits the receiver. A malformed receiver leaves the funds on the
// EVM side and is only reported.
func (k Keeper) handleDeposit(ctx sdk.Context, claim *types.MsgDepositClaim) error {
	receiver, err := sdk.AccAddressFromBech32(claim.Receiver)
	if err != nil {
		k.Logger(ctx).Error("deposit receiver invalid",
			"event_nonce", claim.EventNonce,
			"receiver", claim.Receiver,
			"error", err,
		)
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeDepositRejected,
				sdk.NewAttribute(types.AttributeKeyReceiver, claim.Receiver),
				sdk.NewAttribute(types.AttributeKeyTokenContract, claim.TokenContract),
				sdk.NewAttribute(types.AttributeKeyReason, "invalid receiver"),
			),
		)
		return nil
	}

	denom, hubOriginated := k.DenomForContract(ctx, claim.TokenContract)
	coins := sdk.NewCoins(sdk.NewCoin(denom, claim.Amount))
	if !hubOriginated {
		if err := k.bankKeeper.MintCoins(ctx, types.ModuleName, coins); err != nil {
			return errorsmod.Wrapf(err, "mint %s", coins)
		}
	}
	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, receiver, coins); err != nil {
		return errorsmod.Wrapf(err, "send %s to %s", coins, receiver)
	}
	return nil
}
