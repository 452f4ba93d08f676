package ethereum

import (
	"crypto/ecdsa"
	"math/big"
	"os"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	gethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

var _ bridgetypes.TxSigner = (*KeySigner)(nil)

// KeySigner signs checkpoints and bridge transactions with an in-memory EVM key
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address gethcommon.Address
}

// NewKeySigner wraps key
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// LoadKeySigner reads a hex encoded secp256k1 key from path
func LoadKeySigner(path string) (*KeySigner, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "load key %s", path)
	}
	return NewKeySigner(key), nil
}

// LoadKeystoreSigner decrypts a web3 secret storage file
func LoadKeystoreSigner(path, password string) (*KeySigner, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "read keystore %s", path)
	}
	key, err := keystore.DecryptKey(bz, password)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "decrypt keystore %s", path)
	}
	return NewKeySigner(key.PrivateKey), nil
}

// Address returns the checksummed address of the key
func (s *KeySigner) Address() string {
	return s.address.Hex()
}

// Sign produces an EIP-191 signature over msg with V in {27, 28}
func (s *KeySigner) Sign(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignTx signs tx for chainID with the latest signer the chain supports
func (s *KeySigner) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	if chainID == nil {
		return nil, bind.ErrNoChainID
	}
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), s.key)
}
