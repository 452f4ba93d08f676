package hub_test

import (
	"path/filepath"
	"testing"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/hub"
)

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.key")
	key := secp256k1.GenPrivKey()
	require.NoError(t, hub.SaveKey(path, key))

	loaded, err := hub.LoadKey(path)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address(), loaded.PubKey().Address())

	// an EVM key file doubles as a hub key
	ethKey, err := crypto.LoadECDSA(path)
	require.NoError(t, err)
	require.Equal(t, key.Key, crypto.FromECDSA(ethKey))
}

func TestLoadKeyMissing(t *testing.T) {
	_, err := hub.LoadKey(filepath.Join(t.TempDir(), "absent.key"))
	require.Error(t, err)
}
