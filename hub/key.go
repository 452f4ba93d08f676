package hub

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadKey reads a hex encoded secp256k1 account key, the same file format as EVM key files
func LoadKey(path string) (*secp256k1.PrivKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "load hub key %s", path)
	}
	return &secp256k1.PrivKey{Key: crypto.FromECDSA(key)}, nil
}

// SaveKey writes key to path in the format LoadKey reads
func SaveKey(path string, key *secp256k1.PrivKey) error {
	ecdsaKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return errorsmod.Wrap(err, "hub key")
	}
	return crypto.SaveECDSA(path, ecdsaKey)
}
