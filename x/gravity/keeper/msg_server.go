package keeper

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	gethcommon "github.com/ethereum/go-ethereum/common"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

type msgServer struct {
	Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
// for the provided Keeper.
func NewMsgServerImpl(keeper Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

var _ types.MsgServer = msgServer{}

// SetOrchestratorAddress binds a bonded validator to its orchestrator and EVM address
func (k msgServer) SetOrchestratorAddress(goCtx context.Context, msg *types.MsgSetOrchestratorAddress) (*types.MsgSetOrchestratorAddressResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	powers, _, err := k.bondedPowers(ctx)
	if err != nil {
		return nil, err
	}
	if _, bonded := powers[msg.Validator]; !bonded {
		return nil, errorsmod.Wrap(types.ErrValidatorNotBonded, msg.Validator)
	}

	key := types.DelegateKey{
		Validator:    msg.Validator,
		Orchestrator: msg.Orchestrator,
		EthAddress:   msg.EthAddress,
	}
	if err := k.SetDelegateKey(ctx, key); err != nil {
		return nil, err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSetOrchestrator,
			sdk.NewAttribute(types.AttributeKeyValidator, msg.Validator),
			sdk.NewAttribute(types.AttributeKeyOrchestrator, msg.Orchestrator),
			sdk.NewAttribute(types.AttributeKeyEthAddress, msg.EthAddress),
		),
	)
	return &types.MsgSetOrchestratorAddressResponse{}, nil
}

// confirmingDelegate returns the delegate key of a confirming orchestrator and checks
// that the claimed EVM signer is the one bound to it
func (k msgServer) confirmingDelegate(ctx sdk.Context, orchestrator, ethSigner string) (types.DelegateKey, error) {
	delegate, found := k.GetDelegateKeyByOrchestrator(ctx, orchestrator)
	if !found {
		return types.DelegateKey{}, errorsmod.Wrap(types.ErrUnknownOrchestrator, orchestrator)
	}
	if gethcommon.HexToAddress(ethSigner) != gethcommon.HexToAddress(delegate.EthAddress) {
		return types.DelegateKey{}, errorsmod.Wrapf(types.ErrInvalidEthSignature, "%s is not bound to %s", ethSigner, orchestrator)
	}
	return delegate, nil
}

// ValsetConfirm stores an orchestrator's signature over a valset checkpoint
func (k msgServer) ValsetConfirm(goCtx context.Context, msg *types.MsgValsetConfirm) (*types.MsgValsetConfirmResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	valset, found := k.GetValset(ctx, msg.Nonce)
	if !found {
		return nil, errorsmod.Wrapf(types.ErrUnknownValset, "nonce %d", msg.Nonce)
	}
	delegate, err := k.confirmingDelegate(ctx, msg.Orchestrator, msg.EthAddress)
	if err != nil {
		return nil, err
	}
	checkpoint, err := valset.Checkpoint(k.GetParams(ctx).GravityID)
	if err != nil {
		return nil, err
	}
	if err := bridgetypes.ValidateEthSignature(checkpoint, msg.Signature, delegate.EthAddress); err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidEthSignature, err.Error())
	}
	if _, found := k.GetValsetConfirm(ctx, msg.Nonce, msg.Orchestrator); found {
		return nil, errorsmod.Wrapf(types.ErrDuplicate, "valset %d already confirmed by %s", msg.Nonce, msg.Orchestrator)
	}

	confirm := *msg
	confirm.EthAddress = delegate.EthAddress
	k.SetValsetConfirm(ctx, confirm)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeValsetConfirm,
			sdk.NewAttribute(types.AttributeKeyValsetNonce, fmt.Sprintf("%d", msg.Nonce)),
			sdk.NewAttribute(types.AttributeKeyOrchestrator, msg.Orchestrator),
		),
	)
	return &types.MsgValsetConfirmResponse{}, nil
}

// ConfirmBatch stores an orchestrator's signature over a batch checkpoint
func (k msgServer) ConfirmBatch(goCtx context.Context, msg *types.MsgConfirmBatch) (*types.MsgConfirmBatchResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	batch, found := k.GetOutgoingTxBatch(ctx, msg.TokenContract, msg.Nonce)
	if !found {
		return nil, errorsmod.Wrapf(types.ErrUnknownBatch, "token %s nonce %d", msg.TokenContract, msg.Nonce)
	}
	delegate, err := k.confirmingDelegate(ctx, msg.Orchestrator, msg.EthSigner)
	if err != nil {
		return nil, err
	}
	checkpoint, err := batch.Checkpoint(k.GetParams(ctx).GravityID)
	if err != nil {
		return nil, err
	}
	if err := bridgetypes.ValidateEthSignature(checkpoint, msg.Signature, delegate.EthAddress); err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidEthSignature, err.Error())
	}
	if _, found := k.GetBatchConfirm(ctx, batch.TokenContract, msg.Nonce, msg.Orchestrator); found {
		return nil, errorsmod.Wrapf(types.ErrDuplicate, "batch %d already confirmed by %s", msg.Nonce, msg.Orchestrator)
	}

	confirm := *msg
	confirm.TokenContract = batch.TokenContract
	confirm.EthSigner = delegate.EthAddress
	k.SetBatchConfirm(ctx, confirm)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeBatchConfirm,
			sdk.NewAttribute(types.AttributeKeyTokenContract, batch.TokenContract),
			sdk.NewAttribute(types.AttributeKeyBatchNonce, fmt.Sprintf("%d", msg.Nonce)),
			sdk.NewAttribute(types.AttributeKeyOrchestrator, msg.Orchestrator),
		),
	)
	return &types.MsgConfirmBatchResponse{}, nil
}

// SendToEth queues a transfer to the EVM chain
func (k msgServer) SendToEth(goCtx context.Context, msg *types.MsgSendToEth) (*types.MsgSendToEthResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, errorsmod.Wrap(sdkerrors.ErrInvalidAddress, msg.Sender)
	}
	id, err := k.AddToOutgoingPool(ctx, sender, gethcommon.HexToAddress(msg.EthDest).Hex(), msg.Amount, msg.BridgeFee)
	if err != nil {
		return nil, err
	}
	return &types.MsgSendToEthResponse{ID: id}, nil
}

// CancelSendToEth refunds an unbatched transfer
func (k msgServer) CancelSendToEth(goCtx context.Context, msg *types.MsgCancelSendToEth) (*types.MsgCancelSendToEthResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	sender, err := sdk.AccAddressFromBech32(msg.Sender)
	if err != nil {
		return nil, errorsmod.Wrap(sdkerrors.ErrInvalidAddress, msg.Sender)
	}
	if err := k.RemoveFromOutgoingPoolAndRefund(ctx, msg.TransactionID, sender); err != nil {
		return nil, err
	}
	return &types.MsgCancelSendToEthResponse{}, nil
}

// RequestBatch builds a batch for the token contract of the requested denom
func (k msgServer) RequestBatch(goCtx context.Context, msg *types.MsgRequestBatch) (*types.MsgRequestBatchResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	contract, _, err := k.ContractForDenom(ctx, msg.Denom)
	if err != nil {
		return nil, err
	}
	feeReceive := msg.FeeReceive
	if feeReceive != "" {
		feeReceive = gethcommon.HexToAddress(feeReceive).Hex()
	}
	batch, err := k.BuildOutgoingTxBatch(ctx, contract, msg.MinimumFee, feeReceive)
	if err != nil {
		return nil, err
	}
	return &types.MsgRequestBatchResponse{BatchNonce: batch.BatchNonce, TotalFee: batch.TotalFee()}, nil
}

func (k msgServer) claim(goCtx context.Context, claim types.EthereumClaim) (*types.MsgClaimResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)

	att, err := k.Attest(ctx, claim)
	if err != nil {
		return nil, err
	}
	return &types.MsgClaimResponse{Observed: att.Observed, Votes: len(att.Votes)}, nil
}

// DepositClaim handles MsgDepositClaim messages
func (k msgServer) DepositClaim(goCtx context.Context, msg *types.MsgDepositClaim) (*types.MsgClaimResponse, error) {
	return k.claim(goCtx, msg)
}

// WithdrawClaim handles MsgWithdrawClaim messages
func (k msgServer) WithdrawClaim(goCtx context.Context, msg *types.MsgWithdrawClaim) (*types.MsgClaimResponse, error) {
	return k.claim(goCtx, msg)
}

// OriginatedTokenClaim handles MsgOriginatedTokenClaim messages
func (k msgServer) OriginatedTokenClaim(goCtx context.Context, msg *types.MsgOriginatedTokenClaim) (*types.MsgClaimResponse, error) {
	return k.claim(goCtx, msg)
}

// ValsetUpdatedClaim handles MsgValsetUpdatedClaim messages
func (k msgServer) ValsetUpdatedClaim(goCtx context.Context, msg *types.MsgValsetUpdatedClaim) (*types.MsgClaimResponse, error) {
	return k.claim(goCtx, msg)
}
