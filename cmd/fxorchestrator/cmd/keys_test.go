package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeysGenerateAndShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("[hub]\nkey_file = %q\n\n[ethereum]\nkey_file = %q\n",
		filepath.Join(dir, "hub.key"), filepath.Join(dir, "eth.key"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	generated, err := execute(t, "keys", "generate", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, generated, "orchestrator: "+AccountAddressPrefix+"1")
	require.Contains(t, generated, "eth_address: 0x")

	shown, err := execute(t, "keys", "show", "--config", cfgPath)
	require.NoError(t, err)
	require.Equal(t, generated, shown)

	_, err = execute(t, "keys", "generate", "--config", cfgPath)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestStartRejectsIncompleteConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[hub]\nchain_id = \"fxcore\"\n"), 0o600))

	_, err := execute(t, "start", "--config", cfgPath)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
