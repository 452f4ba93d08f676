package types

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	gethcommon "github.com/ethereum/go-ethereum/common"
)

// ClaimType tags the closed set of bridge events
type ClaimType uint8

const (
	ClaimTypeUnspecified ClaimType = iota
	ClaimTypeDeposit
	ClaimTypeWithdraw
	ClaimTypeOriginatedToken
	ClaimTypeValsetUpdated
)

func (t ClaimType) String() string {
	switch t {
	case ClaimTypeDeposit:
		return "deposit"
	case ClaimTypeWithdraw:
		return "withdraw"
	case ClaimTypeOriginatedToken:
		return "originated_token"
	case ClaimTypeValsetUpdated:
		return "valset_updated"
	default:
		return "unspecified"
	}
}

// ChainEvent is a bridge contract event observed on the EVM chain.
// Implementations are limited to the four event structs in this file.
type ChainEvent interface {
	GetEventNonce() uint64
	GetBlockHeight() uint64
	GetType() ClaimType
	Validate() error

	isChainEvent()
}

var (
	_ ChainEvent = &DepositEvent{}
	_ ChainEvent = &WithdrawEvent{}
	_ ChainEvent = &OriginatedTokenEvent{}
	_ ChainEvent = &ValsetUpdatedEvent{}
)

// DepositEvent locks tokens on the EVM chain for a hub receiver
type DepositEvent struct {
	EventNonce    uint64
	BlockHeight   uint64
	TokenContract string
	Amount        math.Int
	Sender        string
	Receiver      string
	TargetIBC     string
}

// WithdrawEvent reports that a batch was executed by the bridge contract
type WithdrawEvent struct {
	EventNonce    uint64
	BlockHeight   uint64
	BatchNonce    uint64
	TokenContract string
}

// OriginatedTokenEvent reports deployment of an ERC20 representing a hub denom
type OriginatedTokenEvent struct {
	EventNonce    uint64
	BlockHeight   uint64
	TokenContract string
	Name          string
	Symbol        string
	Decimals      uint64
}

// ValsetUpdatedEvent reports that the bridge contract switched signer sets
type ValsetUpdatedEvent struct {
	EventNonce  uint64
	BlockHeight uint64
	ValsetNonce uint64
	Members     BridgeValidators
}

func (e *DepositEvent) GetEventNonce() uint64         { return e.EventNonce }
func (e *WithdrawEvent) GetEventNonce() uint64        { return e.EventNonce }
func (e *OriginatedTokenEvent) GetEventNonce() uint64 { return e.EventNonce }
func (e *ValsetUpdatedEvent) GetEventNonce() uint64   { return e.EventNonce }

func (e *DepositEvent) GetBlockHeight() uint64         { return e.BlockHeight }
func (e *WithdrawEvent) GetBlockHeight() uint64        { return e.BlockHeight }
func (e *OriginatedTokenEvent) GetBlockHeight() uint64 { return e.BlockHeight }
func (e *ValsetUpdatedEvent) GetBlockHeight() uint64   { return e.BlockHeight }

func (e *DepositEvent) GetType() ClaimType         { return ClaimTypeDeposit }
func (e *WithdrawEvent) GetType() ClaimType        { return ClaimTypeWithdraw }
func (e *OriginatedTokenEvent) GetType() ClaimType { return ClaimTypeOriginatedToken }
func (e *ValsetUpdatedEvent) GetType() ClaimType   { return ClaimTypeValsetUpdated }

func (*DepositEvent) isChainEvent()         {}
func (*WithdrawEvent) isChainEvent()        {}
func (*OriginatedTokenEvent) isChainEvent() {}
func (*ValsetUpdatedEvent) isChainEvent()   {}

func (e *DepositEvent) Validate() error {
	if e.EventNonce == 0 {
		return errorsmod.Wrap(ErrInvalidEvent, "zero event nonce")
	}
	if err := ValidateEthAddress(e.TokenContract); err != nil {
		return errorsmod.Wrap(err, "token contract")
	}
	if err := ValidateEthAddress(e.Sender); err != nil {
		return errorsmod.Wrap(err, "sender")
	}
	if e.Amount.IsNil() || !e.Amount.IsPositive() {
		return errorsmod.Wrapf(ErrInvalidEvent, "non-positive amount %s", e.Amount)
	}
	if e.Receiver == "" {
		return errorsmod.Wrap(ErrInvalidEvent, "empty receiver")
	}
	return nil
}

func (e *WithdrawEvent) Validate() error {
	if e.EventNonce == 0 {
		return errorsmod.Wrap(ErrInvalidEvent, "zero event nonce")
	}
	if e.BatchNonce == 0 {
		return errorsmod.Wrap(ErrInvalidEvent, "zero batch nonce")
	}
	return ValidateEthAddress(e.TokenContract)
}

func (e *OriginatedTokenEvent) Validate() error {
	if e.EventNonce == 0 {
		return errorsmod.Wrap(ErrInvalidEvent, "zero event nonce")
	}
	if e.Name == "" {
		return errorsmod.Wrap(ErrInvalidEvent, "empty token name")
	}
	return ValidateEthAddress(e.TokenContract)
}

func (e *ValsetUpdatedEvent) Validate() error {
	if e.EventNonce == 0 {
		return errorsmod.Wrap(ErrInvalidEvent, "zero event nonce")
	}
	if len(e.Members) == 0 {
		return errorsmod.Wrap(ErrInvalidEvent, "empty valset")
	}
	for _, m := range e.Members {
		if err := ValidateEthAddress(m.EthAddress); err != nil {
			return errorsmod.Wrap(err, "valset member")
		}
	}
	return nil
}

func (e *DepositEvent) String() string {
	return fmt.Sprintf("DepositEvent{Nonce: %d, Token: %s, Amount: %s}", e.EventNonce, e.TokenContract, e.Amount)
}

// ValidateEthAddress checks for a 0x prefixed 20 byte hex address
func ValidateEthAddress(address string) error {
	if !gethcommon.IsHexAddress(address) || len(address) != 42 {
		return errorsmod.Wrapf(ErrInvalidEthAddress, "%q", address)
	}
	return nil
}
