package types

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// Tx is the signed envelope gravity messages are broadcast in. It is amino JSON
// encoded on the wire and signed by one secp256k1 account.
type Tx struct {
	Msgs          []Msg  `json:"msgs"`
	Memo          string `json:"memo"`
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
	PubKey        []byte `json:"pub_key"`
	Signature     []byte `json:"signature"`
}

type signDoc struct {
	ChainID       string `json:"chain_id"`
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
	Memo          string `json:"memo"`
	Msgs          []Msg  `json:"msgs"`
}

// SignBytes returns the sorted amino JSON the signer commits to on chainID
func (tx Tx) SignBytes(chainID string) ([]byte, error) {
	bz, err := ModuleCdc.MarshalJSON(signDoc{
		ChainID:       chainID,
		AccountNumber: tx.AccountNumber,
		Sequence:      tx.Sequence,
		Memo:          tx.Memo,
		Msgs:          tx.Msgs,
	})
	if err != nil {
		return nil, err
	}
	return sdk.SortJSON(bz)
}

// Signer returns the account of the envelope's public key
func (tx Tx) Signer() (sdk.AccAddress, error) {
	if len(tx.PubKey) != secp256k1.PubKeySize {
		return nil, errorsmod.Wrapf(sdkerrors.ErrInvalidPubKey, "length %d", len(tx.PubKey))
	}
	pk := &secp256k1.PubKey{Key: tx.PubKey}
	return sdk.AccAddress(pk.Address()), nil
}

// ValidateBasic checks every message and that each one is signed for by the envelope's key
func (tx Tx) ValidateBasic() error {
	if len(tx.Msgs) == 0 {
		return errorsmod.Wrap(sdkerrors.ErrInvalidRequest, "empty transaction")
	}
	signer, err := tx.Signer()
	if err != nil {
		return err
	}
	for _, msg := range tx.Msgs {
		if err := msg.ValidateBasic(); err != nil {
			return err
		}
		if msg.GetSigner() != signer.String() {
			return errorsmod.Wrapf(sdkerrors.ErrUnauthorized, "%s must be signed by %s", msg.Type(), msg.GetSigner())
		}
	}
	return nil
}

// VerifySignature checks the envelope signature against chainID
func (tx Tx) VerifySignature(chainID string) error {
	if _, err := tx.Signer(); err != nil {
		return err
	}
	signBytes, err := tx.SignBytes(chainID)
	if err != nil {
		return err
	}
	pk := &secp256k1.PubKey{Key: tx.PubKey}
	if !pk.VerifySignature(signBytes, tx.Signature) {
		return errorsmod.Wrap(sdkerrors.ErrUnauthorized, "signature verification failed")
	}
	return nil
}

// EncodeTx serializes tx for broadcast
func EncodeTx(tx Tx) ([]byte, error) {
	return ModuleCdc.MarshalJSON(tx)
}

// DecodeTx parses a broadcast envelope
func DecodeTx(bz []byte) (Tx, error) {
	var tx Tx
	if err := ModuleCdc.UnmarshalJSON(bz, &tx); err != nil {
		return Tx{}, errorsmod.Wrap(sdkerrors.ErrTxDecode, err.Error())
	}
	return tx, nil
}
