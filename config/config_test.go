package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/orchestrator"
)

const testConfig = `
home = "/var/lib/fxorch"
log_level = "debug"

[ethereum]
rpc = "http://localhost:8545"
bridge_address = "0x00000000000000000000000000000000000000b1"
key_file = "eth.key"

[hub]
rpc = "tcp://localhost:26657"
chain_id = "fxcore"
key_file = "hub.key"

[orchestrator]
confirmation_depth = 12
poll_interval = "2s"
min_batch_fee = "250"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsMatchLoop(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, zerolog.InfoLevel.String(), cfg.LogLevel)
	require.Equal(t, DefaultHubRPC, cfg.Hub.RPC)
	require.Equal(t, filepath.Join(cfg.Home, "data"), cfg.DataPath())

	loop, err := cfg.Orchestrator.Loop()
	require.NoError(t, err)
	def := orchestrator.DefaultConfig()
	require.True(t, def.MinBatchFee.Equal(loop.MinBatchFee))
	def.MinBatchFee, loop.MinBatchFee = math.Int{}, math.Int{}
	require.Equal(t, def, loop)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(New(), writeConfig(t, testConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "/var/lib/fxorch/data", cfg.DataPath())
	level, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, level)
	require.Equal(t, "fxcore", cfg.Hub.ChainID)

	loop, err := cfg.Orchestrator.Loop()
	require.NoError(t, err)
	require.Equal(t, uint64(12), loop.ConfirmationDepth)
	require.Equal(t, 2*time.Second, loop.PollInterval)
	require.Equal(t, orchestrator.DefaultConfig().RPCTimeout, loop.RPCTimeout)
	require.True(t, loop.MinBatchFee.Equal(math.NewInt(250)))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FXORCH_HUB_CHAIN_ID", "fxcore-testnet")
	t.Setenv("FXORCH_ORCHESTRATOR_SCAN_WINDOW", "500")
	t.Setenv("FXORCH_ORCHESTRATOR_RESCAN_POLLS", "3")
	t.Setenv("FXORCH_ORCHESTRATOR_RELAY_BATCHES", "false")
	t.Setenv("FXORCH_ORCHESTRATOR_BACKOFF_MAX", "30s")

	cfg, err := Load(New(), writeConfig(t, testConfig))
	require.NoError(t, err)
	require.Equal(t, "fxcore-testnet", cfg.Hub.ChainID)

	loop, err := cfg.Orchestrator.Loop()
	require.NoError(t, err)
	require.Equal(t, uint64(500), loop.ScanWindow)
	require.Equal(t, uint64(3), loop.RescanPolls)
	require.False(t, loop.RelayBatches)
	require.Equal(t, 30*time.Second, loop.BackoffMax)
}

func TestValidate(t *testing.T) {
	valid, err := Load(New(), writeConfig(t, testConfig))
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"log level":      func(c *Config) { c.LogLevel = "loud" },
		"log format":     func(c *Config) { c.LogFormat = "xml" },
		"no evm rpc":     func(c *Config) { c.Ethereum.RPC = "" },
		"bad bridge":     func(c *Config) { c.Ethereum.BridgeAddress = "0x12" },
		"two eth keys":   func(c *Config) { c.Ethereum.Keystore = "keystore.json" },
		"no eth key":     func(c *Config) { c.Ethereum.KeyFile = "" },
		"no chain id":    func(c *Config) { c.Hub.ChainID = "" },
		"no hub key":     func(c *Config) { c.Hub.KeyFile = "" },
		"negative fee":   func(c *Config) { c.Orchestrator.MinBatchFee = "-1" },
		"garbage fee":    func(c *Config) { c.Orchestrator.MinBatchFee = "lots" },
		"fee receive":    func(c *Config) { c.Orchestrator.FeeReceive = "fx1abc" },
		"zero depth":     func(c *Config) { c.Orchestrator.ConfirmationDepth = 0 },
		"zero window":    func(c *Config) { c.Orchestrator.ScanWindow = 0 },
		"no rescans":     func(c *Config) { c.Orchestrator.RescanPolls = 0 },
		"backoff order":  func(c *Config) { c.Orchestrator.BackoffMax = time.Millisecond },
		"no rpc timeout": func(c *Config) { c.Orchestrator.RPCTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}
