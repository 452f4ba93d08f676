package keeper

import (
	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/functionx/fx-bridge/x/gravity/types"
)

// Handler executes one gravity message against the store
type Handler func(ctx sdk.Context, msg types.Msg) (*sdk.Result, error)

// NewHandler routes gravity messages to the msg server. Each message runs in a
// cached context that is only written back when it succeeds.
func NewHandler(k Keeper) Handler {
	msgServer := NewMsgServerImpl(k)

	return func(ctx sdk.Context, msg types.Msg) (*sdk.Result, error) {
		if err := msg.ValidateBasic(); err != nil {
			return nil, err
		}
		cacheCtx, commit := ctx.CacheContext()

		var err error
		switch msg := msg.(type) {
		case *types.MsgSetOrchestratorAddress:
			_, err = msgServer.SetOrchestratorAddress(cacheCtx, msg)
		case *types.MsgValsetConfirm:
			_, err = msgServer.ValsetConfirm(cacheCtx, msg)
		case *types.MsgConfirmBatch:
			_, err = msgServer.ConfirmBatch(cacheCtx, msg)
		case *types.MsgSendToEth:
			_, err = msgServer.SendToEth(cacheCtx, msg)
		case *types.MsgCancelSendToEth:
			_, err = msgServer.CancelSendToEth(cacheCtx, msg)
		case *types.MsgRequestBatch:
			_, err = msgServer.RequestBatch(cacheCtx, msg)
		case *types.MsgDepositClaim:
			_, err = msgServer.DepositClaim(cacheCtx, msg)
		case *types.MsgWithdrawClaim:
			_, err = msgServer.WithdrawClaim(cacheCtx, msg)
		case *types.MsgOriginatedTokenClaim:
			_, err = msgServer.OriginatedTokenClaim(cacheCtx, msg)
		case *types.MsgValsetUpdatedClaim:
			_, err = msgServer.ValsetUpdatedClaim(cacheCtx, msg)
		default:
			return nil, errorsmod.Wrapf(types.ErrUnsupportedMsg, "%T", msg)
		}
		if err != nil {
			return nil, err
		}

		commit()
		return &sdk.Result{Events: cacheCtx.EventManager().ABCIEvents()}, nil
	}
}
