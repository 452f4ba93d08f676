package types

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

const (
	TypeMsgSetOrchestratorAddress = "set_orchestrator_address"
	TypeMsgValsetConfirm          = "valset_confirm"
	TypeMsgConfirmBatch           = "confirm_batch"
	TypeMsgSendToEth              = "send_to_eth"
	TypeMsgCancelSendToEth        = "cancel_send_to_eth"
	TypeMsgRequestBatch           = "request_batch"
)

// Msg is a gravity message carried in a hub transaction
type Msg interface {
	sdk.Msg
	Route() string
	Type() string
	ValidateBasic() error
	// GetSigner returns the bech32 account that must sign the transaction
	GetSigner() string
}

var (
	_ Msg = &MsgSetOrchestratorAddress{}
	_ Msg = &MsgValsetConfirm{}
	_ Msg = &MsgConfirmBatch{}
	_ Msg = &MsgSendToEth{}
	_ Msg = &MsgCancelSendToEth{}
	_ Msg = &MsgRequestBatch{}
)

// MsgSetOrchestratorAddress binds a validator to the orchestrator account and EVM
// address that act for it on the bridge
type MsgSetOrchestratorAddress struct {
	Validator    string `json:"validator"`
	Orchestrator string `json:"orchestrator"`
	EthAddress   string `json:"eth_address"`
}

// NewMsgSetOrchestratorAddress creates a new MsgSetOrchestratorAddress instance
func NewMsgSetOrchestratorAddress(val sdk.ValAddress, orchestrator sdk.AccAddress, ethAddress string) *MsgSetOrchestratorAddress {
	return &MsgSetOrchestratorAddress{
		Validator:    val.String(),
		Orchestrator: orchestrator.String(),
		EthAddress:   ethAddress,
	}
}

func (msg *MsgSetOrchestratorAddress) Route() string { return RouterKey }
func (msg *MsgSetOrchestratorAddress) Type() string  { return TypeMsgSetOrchestratorAddress }

// GetSigner returns the validator operator's account
func (msg *MsgSetOrchestratorAddress) GetSigner() string {
	val, err := sdk.ValAddressFromBech32(msg.Validator)
	if err != nil {
		return ""
	}
	return sdk.AccAddress(val).String()
}

func (msg *MsgSetOrchestratorAddress) ValidateBasic() error {
	if _, err := sdk.ValAddressFromBech32(msg.Validator); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "validator")
	}
	if _, err := sdk.AccAddressFromBech32(msg.Orchestrator); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "orchestrator")
	}
	return bridgetypes.ValidateEthAddress(msg.EthAddress)
}

// MsgValsetConfirm carries an orchestrator's EVM signature over a valset checkpoint
type MsgValsetConfirm struct {
	Nonce        uint64 `json:"nonce"`
	Orchestrator string `json:"orchestrator"`
	EthAddress   string `json:"eth_address"`
	Signature    []byte `json:"signature"`
}

func (msg *MsgValsetConfirm) Route() string     { return RouterKey }
func (msg *MsgValsetConfirm) Type() string      { return TypeMsgValsetConfirm }
func (msg *MsgValsetConfirm) GetSigner() string { return msg.Orchestrator }

func (msg *MsgValsetConfirm) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Orchestrator); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "orchestrator")
	}
	if err := bridgetypes.ValidateEthAddress(msg.EthAddress); err != nil {
		return err
	}
	if len(msg.Signature) == 0 {
		return errorsmod.Wrap(ErrInvalid, "empty signature")
	}
	return nil
}

// MsgConfirmBatch carries an orchestrator's EVM signature over a batch checkpoint
type MsgConfirmBatch struct {
	Nonce         uint64 `json:"nonce"`
	TokenContract string `json:"token_contract"`
	EthSigner     string `json:"eth_signer"`
	Orchestrator  string `json:"orchestrator"`
	Signature     []byte `json:"signature"`
}

func (msg *MsgConfirmBatch) Route() string     { return RouterKey }
func (msg *MsgConfirmBatch) Type() string      { return TypeMsgConfirmBatch }
func (msg *MsgConfirmBatch) GetSigner() string { return msg.Orchestrator }

func (msg *MsgConfirmBatch) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Orchestrator); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "orchestrator")
	}
	if err := bridgetypes.ValidateEthAddress(msg.EthSigner); err != nil {
		return errorsmod.Wrap(err, "eth signer")
	}
	if err := bridgetypes.ValidateEthAddress(msg.TokenContract); err != nil {
		return errorsmod.Wrap(err, "token contract")
	}
	if len(msg.Signature) == 0 {
		return errorsmod.Wrap(ErrInvalid, "empty signature")
	}
	return nil
}

// MsgSendToEth queues a transfer from the hub to an EVM address
type MsgSendToEth struct {
	Sender    string   `json:"sender"`
	EthDest   string   `json:"eth_dest"`
	Amount    sdk.Coin `json:"amount"`
	BridgeFee sdk.Coin `json:"bridge_fee"`
}

func (msg *MsgSendToEth) Route() string     { return RouterKey }
func (msg *MsgSendToEth) Type() string      { return TypeMsgSendToEth }
func (msg *MsgSendToEth) GetSigner() string { return msg.Sender }

func (msg *MsgSendToEth) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "sender")
	}
	if err := bridgetypes.ValidateEthAddress(msg.EthDest); err != nil {
		return errorsmod.Wrap(err, "destination")
	}
	if !msg.Amount.IsValid() || !msg.Amount.IsPositive() {
		return errorsmod.Wrap(sdkerrors.ErrInvalidCoins, "amount")
	}
	if !msg.BridgeFee.IsValid() {
		return errorsmod.Wrap(sdkerrors.ErrInvalidCoins, "bridge fee")
	}
	if msg.Amount.Denom != msg.BridgeFee.Denom {
		return errorsmod.Wrapf(sdkerrors.ErrInvalidCoins, "fee denom %s differs from amount denom %s", msg.BridgeFee.Denom, msg.Amount.Denom)
	}
	return nil
}

// MsgCancelSendToEth refunds a transfer that has not been batched yet
type MsgCancelSendToEth struct {
	TransactionID uint64 `json:"transaction_id"`
	Sender        string `json:"sender"`
}

func (msg *MsgCancelSendToEth) Route() string     { return RouterKey }
func (msg *MsgCancelSendToEth) Type() string      { return TypeMsgCancelSendToEth }
func (msg *MsgCancelSendToEth) GetSigner() string { return msg.Sender }

func (msg *MsgCancelSendToEth) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "sender")
	}
	if msg.TransactionID == 0 {
		return errorsmod.Wrap(ErrInvalid, "zero transaction id")
	}
	return nil
}

// MsgRequestBatch asks the hub to freeze a batch for the token contract of Denom
type MsgRequestBatch struct {
	Sender     string   `json:"sender"`
	Denom      string   `json:"denom"`
	MinimumFee math.Int `json:"minimum_fee"`
	FeeReceive string   `json:"fee_receive"`
}

func (msg *MsgRequestBatch) Route() string     { return RouterKey }
func (msg *MsgRequestBatch) Type() string      { return TypeMsgRequestBatch }
func (msg *MsgRequestBatch) GetSigner() string { return msg.Sender }

func (msg *MsgRequestBatch) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Sender); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "sender")
	}
	if err := sdk.ValidateDenom(msg.Denom); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidCoins, err.Error())
	}
	if msg.MinimumFee.IsNil() || msg.MinimumFee.IsNegative() {
		return errorsmod.Wrap(ErrInvalid, "minimum fee")
	}
	if msg.FeeReceive != "" {
		if err := bridgetypes.ValidateEthAddress(msg.FeeReceive); err != nil {
			return errorsmod.Wrap(err, "fee receive")
		}
	}
	return nil
}

// proto.Message conformance so the messages satisfy sdk.Msg

func (msg *MsgSetOrchestratorAddress) Reset()    { *msg = MsgSetOrchestratorAddress{} }
func (msg *MsgValsetConfirm) Reset()             { *msg = MsgValsetConfirm{} }
func (msg *MsgConfirmBatch) Reset()              { *msg = MsgConfirmBatch{} }
func (msg *MsgSendToEth) Reset()                 { *msg = MsgSendToEth{} }
func (msg *MsgCancelSendToEth) Reset()           { *msg = MsgCancelSendToEth{} }
func (msg *MsgRequestBatch) Reset()              { *msg = MsgRequestBatch{} }
func (*MsgSetOrchestratorAddress) ProtoMessage() {}
func (*MsgValsetConfirm) ProtoMessage()          {}
func (*MsgConfirmBatch) ProtoMessage()           {}
func (*MsgSendToEth) ProtoMessage()              {}
func (*MsgCancelSendToEth) ProtoMessage()        {}
func (*MsgRequestBatch) ProtoMessage()           {}

func (msg *MsgSetOrchestratorAddress) String() string { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgValsetConfirm) String() string          { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgConfirmBatch) String() string           { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgSendToEth) String() string              { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgCancelSendToEth) String() string        { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgRequestBatch) String() string           { return fmt.Sprintf("%+v", *msg) }
