package types

import (
	"encoding/binary"
	"fmt"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/cometbft/cometbft/crypto/tmhash"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	gethcommon "github.com/ethereum/go-ethereum/common"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// EthereumClaim is an orchestrator's assertion that an EVM bridge event happened.
// Claims from different orchestrators with equal ClaimHash are votes for the same event.
type EthereumClaim interface {
	Msg
	GetEventNonce() uint64
	GetBlockHeight() uint64
	GetClaimer() string
	GetType() bridgetypes.ClaimType
	// ClaimHash covers the event payload and excludes the claimer
	ClaimHash() []byte
}

var (
	_ EthereumClaim = &MsgDepositClaim{}
	_ EthereumClaim = &MsgWithdrawClaim{}
	_ EthereumClaim = &MsgOriginatedTokenClaim{}
	_ EthereumClaim = &MsgValsetUpdatedClaim{}
)

// MsgDepositClaim claims that tokens were locked on the EVM chain for Receiver
type MsgDepositClaim struct {
	EventNonce    uint64   `json:"event_nonce"`
	BlockHeight   uint64   `json:"block_height"`
	TokenContract string   `json:"token_contract"`
	Amount        math.Int `json:"amount"`
	EthSender     string   `json:"eth_sender"`
	Receiver      string   `json:"receiver"`
	TargetIBC     string   `json:"target_ibc"`
	Orchestrator  string   `json:"orchestrator"`
}

// MsgWithdrawClaim claims that a batch was executed by the bridge contract
type MsgWithdrawClaim struct {
	EventNonce    uint64 `json:"event_nonce"`
	BlockHeight   uint64 `json:"block_height"`
	BatchNonce    uint64 `json:"batch_nonce"`
	TokenContract string `json:"token_contract"`
	Orchestrator  string `json:"orchestrator"`
}

// MsgOriginatedTokenClaim claims that an ERC20 representing a hub denom was deployed
type MsgOriginatedTokenClaim struct {
	EventNonce    uint64 `json:"event_nonce"`
	BlockHeight   uint64 `json:"block_height"`
	TokenContract string `json:"token_contract"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      uint64 `json:"decimals"`
	Orchestrator  string `json:"orchestrator"`
}

// MsgValsetUpdatedClaim claims that the bridge contract switched to a new signer set
type MsgValsetUpdatedClaim struct {
	EventNonce   uint64                       `json:"event_nonce"`
	BlockHeight  uint64                       `json:"block_height"`
	ValsetNonce  uint64                       `json:"valset_nonce"`
	Members      bridgetypes.BridgeValidators `json:"members"`
	Orchestrator string                       `json:"orchestrator"`
}

func (msg *MsgDepositClaim) GetEventNonce() uint64         { return msg.EventNonce }
func (msg *MsgWithdrawClaim) GetEventNonce() uint64        { return msg.EventNonce }
func (msg *MsgOriginatedTokenClaim) GetEventNonce() uint64 { return msg.EventNonce }
func (msg *MsgValsetUpdatedClaim) GetEventNonce() uint64   { return msg.EventNonce }

func (msg *MsgDepositClaim) GetBlockHeight() uint64         { return msg.BlockHeight }
func (msg *MsgWithdrawClaim) GetBlockHeight() uint64        { return msg.BlockHeight }
func (msg *MsgOriginatedTokenClaim) GetBlockHeight() uint64 { return msg.BlockHeight }
func (msg *MsgValsetUpdatedClaim) GetBlockHeight() uint64   { return msg.BlockHeight }

func (msg *MsgDepositClaim) GetClaimer() string         { return msg.Orchestrator }
func (msg *MsgWithdrawClaim) GetClaimer() string        { return msg.Orchestrator }
func (msg *MsgOriginatedTokenClaim) GetClaimer() string { return msg.Orchestrator }
func (msg *MsgValsetUpdatedClaim) GetClaimer() string   { return msg.Orchestrator }

func (msg *MsgDepositClaim) GetSigner() string         { return msg.Orchestrator }
func (msg *MsgWithdrawClaim) GetSigner() string        { return msg.Orchestrator }
func (msg *MsgOriginatedTokenClaim) GetSigner() string { return msg.Orchestrator }
func (msg *MsgValsetUpdatedClaim) GetSigner() string   { return msg.Orchestrator }

func (msg *MsgDepositClaim) GetType() bridgetypes.ClaimType { return bridgetypes.ClaimTypeDeposit }
func (msg *MsgWithdrawClaim) GetType() bridgetypes.ClaimType {
	return bridgetypes.ClaimTypeWithdraw
}
func (msg *MsgOriginatedTokenClaim) GetType() bridgetypes.ClaimType {
	return bridgetypes.ClaimTypeOriginatedToken
}
func (msg *MsgValsetUpdatedClaim) GetType() bridgetypes.ClaimType {
	return bridgetypes.ClaimTypeValsetUpdated
}

func (msg *MsgDepositClaim) Route() string         { return RouterKey }
func (msg *MsgWithdrawClaim) Route() string        { return RouterKey }
func (msg *MsgOriginatedTokenClaim) Route() string { return RouterKey }
func (msg *MsgValsetUpdatedClaim) Route() string   { return RouterKey }

func (msg *MsgDepositClaim) Type() string         { return "deposit_claim" }
func (msg *MsgWithdrawClaim) Type() string        { return "withdraw_claim" }
func (msg *MsgOriginatedTokenClaim) Type() string { return "originated_token_claim" }
func (msg *MsgValsetUpdatedClaim) Type() string   { return "valset_updated_claim" }

func validateClaimHeader(eventNonce uint64, orchestrator string) error {
	if eventNonce == 0 {
		return errorsmod.Wrap(ErrInvalidClaim, "zero event nonce")
	}
	if _, err := sdk.AccAddressFromBech32(orchestrator); err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, "orchestrator")
	}
	return nil
}

// ValidateBasic does not check Receiver beyond emptiness; a malformed receiver is
// still attested so that event nonces keep moving and the deposit is refused on observation.
func (msg *MsgDepositClaim) ValidateBasic() error {
	if err := validateClaimHeader(msg.EventNonce, msg.Orchestrator); err != nil {
		return err
	}
	if err := bridgetypes.ValidateEthAddress(msg.TokenContract); err != nil {
		return errorsmod.Wrap(err, "token contract")
	}
	if err := bridgetypes.ValidateEthAddress(msg.EthSender); err != nil {
		return errorsmod.Wrap(err, "eth sender")
	}
	if msg.Amount.IsNil() || !msg.Amount.IsPositive() {
		return errorsmod.Wrap(ErrInvalidClaim, "non-positive amount")
	}
	if msg.Receiver == "" {
		return errorsmod.Wrap(ErrInvalidClaim, "empty receiver")
	}
	return nil
}

func (msg *MsgWithdrawClaim) ValidateBasic() error {
	if err := validateClaimHeader(msg.EventNonce, msg.Orchestrator); err != nil {
		return err
	}
	if msg.BatchNonce == 0 {
		return errorsmod.Wrap(ErrInvalidClaim, "zero batch nonce")
	}
	return bridgetypes.ValidateEthAddress(msg.TokenContract)
}

func (msg *MsgOriginatedTokenClaim) ValidateBasic() error {
	if err := validateClaimHeader(msg.EventNonce, msg.Orchestrator); err != nil {
		return err
	}
	if msg.Name == "" {
		return errorsmod.Wrap(ErrInvalidClaim, "empty token name")
	}
	return bridgetypes.ValidateEthAddress(msg.TokenContract)
}

func (msg *MsgValsetUpdatedClaim) ValidateBasic() error {
	if err := validateClaimHeader(msg.EventNonce, msg.Orchestrator); err != nil {
		return err
	}
	if len(msg.Members) == 0 {
		return errorsmod.Wrap(ErrInvalidClaim, "empty members")
	}
	for _, m := range msg.Members {
		if err := bridgetypes.ValidateEthAddress(m.EthAddress); err != nil {
			return err
		}
	}
	return nil
}

func normalizeAddress(address string) string {
	return gethcommon.HexToAddress(address).Hex()
}

func (msg *MsgDepositClaim) ClaimHash() []byte {
	return hashClaim(msg.GetType(), u64(msg.EventNonce), u64(msg.BlockHeight),
		normalizeAddress(msg.TokenContract), msg.Amount.String(), normalizeAddress(msg.EthSender), msg.Receiver, msg.TargetIBC)
}

func (msg *MsgWithdrawClaim) ClaimHash() []byte {
	return hashClaim(msg.GetType(), u64(msg.EventNonce), u64(msg.BlockHeight), u64(msg.BatchNonce), normalizeAddress(msg.TokenContract))
}

func (msg *MsgOriginatedTokenClaim) ClaimHash() []byte {
	return hashClaim(msg.GetType(), u64(msg.EventNonce), u64(msg.BlockHeight),
		normalizeAddress(msg.TokenContract), msg.Name, msg.Symbol, u64(msg.Decimals))
}

func (msg *MsgValsetUpdatedClaim) ClaimHash() []byte {
	fields := []string{u64(msg.EventNonce), u64(msg.BlockHeight), u64(msg.ValsetNonce), u64(uint64(len(msg.Members)))}
	for _, m := range msg.Members {
		fields = append(fields, normalizeAddress(m.EthAddress), u64(m.Power))
	}
	return hashClaim(msg.GetType(), fields...)
}

// hashClaim writes every field behind its uvarint length, so two claims only share a
// hash when all their fields are equal.
func hashClaim(claimType bridgetypes.ClaimType, fields ...string) []byte {
	h := tmhash.New()
	var prefix [binary.MaxVarintLen64]byte
	for _, field := range append([]string{claimType.String()}, fields...) {
		h.Write(prefix[:binary.PutUvarint(prefix[:], uint64(len(field)))])
		h.Write([]byte(field))
	}
	return h.Sum(nil)
}

func u64(n uint64) string { return strconv.FormatUint(n, 10) }

func (msg *MsgDepositClaim) Reset()         { *msg = MsgDepositClaim{} }
func (msg *MsgWithdrawClaim) Reset()        { *msg = MsgWithdrawClaim{} }
func (msg *MsgOriginatedTokenClaim) Reset() { *msg = MsgOriginatedTokenClaim{} }
func (msg *MsgValsetUpdatedClaim) Reset()   { *msg = MsgValsetUpdatedClaim{} }

func (*MsgDepositClaim) ProtoMessage()         {}
func (*MsgWithdrawClaim) ProtoMessage()        {}
func (*MsgOriginatedTokenClaim) ProtoMessage() {}
func (*MsgValsetUpdatedClaim) ProtoMessage()   {}

func (msg *MsgDepositClaim) String() string         { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgWithdrawClaim) String() string        { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgOriginatedTokenClaim) String() string { return fmt.Sprintf("%+v", *msg) }
func (msg *MsgValsetUpdatedClaim) String() string   { return fmt.Sprintf("%+v", *msg) }
