package types

import (
	"bytes"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	bytes32Type, _    = abi.NewType("bytes32", "", nil)
	uint256Type, _    = abi.NewType("uint256", "", nil)
	addressType, _    = abi.NewType("address", "", nil)
	addressesType, _  = abi.NewType("address[]", "", nil)
	uint256ArrType, _ = abi.NewType("uint256[]", "", nil)

	valsetCheckpointArgs = abi.Arguments{
		{Type: bytes32Type}, // gravity id
		{Type: bytes32Type}, // "checkpoint"
		{Type: uint256Type}, // valset nonce
		{Type: addressesType},
		{Type: uint256ArrType},
	}

	batchCheckpointArgs = abi.Arguments{
		{Type: bytes32Type}, // gravity id
		{Type: bytes32Type}, // "transactionBatch"
		{Type: uint256ArrType},
		{Type: addressesType},
		{Type: uint256ArrType},
		{Type: uint256Type}, // batch nonce
		{Type: addressType}, // token contract
		{Type: uint256Type}, // batch timeout
		{Type: addressType}, // fee receive
	}
)

// Bytes32 right pads s into a solidity bytes32
func Bytes32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}

// Checkpoint is the keccak256 digest the bridge contract stores for this valset
func (v Valset) Checkpoint(gravityID string) ([]byte, error) {
	if len(v.Members) == 0 {
		return nil, ErrEmptyValset
	}
	addresses := make([]gethcommon.Address, len(v.Members))
	powers := make([]*big.Int, len(v.Members))
	for i, m := range v.Members {
		if err := ValidateEthAddress(m.EthAddress); err != nil {
			return nil, err
		}
		addresses[i] = gethcommon.HexToAddress(m.EthAddress)
		powers[i] = new(big.Int).SetUint64(m.Power)
	}

	packed, err := valsetCheckpointArgs.Pack(
		Bytes32(gravityID),
		Bytes32("checkpoint"),
		new(big.Int).SetUint64(v.Nonce),
		addresses,
		powers,
	)
	if err != nil {
		return nil, errorsmod.Wrap(err, "pack valset checkpoint")
	}
	return crypto.Keccak256(packed), nil
}

// Checkpoint is the keccak256 digest the bridge contract verifies before executing the batch
func (b OutgoingTxBatch) Checkpoint(gravityID string) ([]byte, error) {
	if err := ValidateEthAddress(b.TokenContract); err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(b.Transactions))
	destinations := make([]gethcommon.Address, len(b.Transactions))
	fees := make([]*big.Int, len(b.Transactions))
	for i, tx := range b.Transactions {
		if err := ValidateEthAddress(tx.DestAddress); err != nil {
			return nil, err
		}
		amounts[i] = tx.Token.Amount.BigInt()
		destinations[i] = gethcommon.HexToAddress(tx.DestAddress)
		fees[i] = tx.Fee.Amount.BigInt()
	}

	feeReceive := gethcommon.Address{}
	if b.FeeReceive != "" {
		if err := ValidateEthAddress(b.FeeReceive); err != nil {
			return nil, err
		}
		feeReceive = gethcommon.HexToAddress(b.FeeReceive)
	}

	packed, err := batchCheckpointArgs.Pack(
		Bytes32(gravityID),
		Bytes32("transactionBatch"),
		amounts,
		destinations,
		fees,
		new(big.Int).SetUint64(b.BatchNonce),
		gethcommon.HexToAddress(b.TokenContract),
		new(big.Int).SetUint64(b.BatchTimeout),
		feeReceive,
	)
	if err != nil {
		return nil, errorsmod.Wrap(err, "pack batch checkpoint")
	}
	return crypto.Keccak256(packed), nil
}

// RecoverEthSigner returns the address that produced an EIP-191 signature over checkpoint.
// V may be either 0/1 or 27/28.
func RecoverEthSigner(checkpoint, signature []byte) (gethcommon.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return gethcommon.Address{}, errorsmod.Wrapf(ErrInvalidSignature, "length %d", len(signature))
	}
	sig := bytes.Clone(signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(checkpoint), sig)
	if err != nil {
		return gethcommon.Address{}, errorsmod.Wrap(ErrInvalidSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ValidateEthSignature checks that signature over checkpoint was made by ethAddress
func ValidateEthSignature(checkpoint, signature []byte, ethAddress string) error {
	if err := ValidateEthAddress(ethAddress); err != nil {
		return err
	}
	signer, err := RecoverEthSigner(checkpoint, signature)
	if err != nil {
		return err
	}
	if signer != gethcommon.HexToAddress(ethAddress) {
		return errorsmod.Wrapf(ErrInvalidSignature, "signed by %s, expected %s", signer.Hex(), ethAddress)
	}
	return nil
}
