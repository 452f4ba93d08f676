package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/functionx/fx-bridge/orchestrator"
	bridgetypes "github.com/functionx/fx-bridge/types"
)

const (
	Codespace = "config"

	// EnvPrefix prefixes environment overrides, e.g. FXORCH_ETHEREUM_RPC
	EnvPrefix = "FXORCH"

	DefaultHomeDir = ".fxorchestrator"
	DefaultHubRPC  = "tcp://localhost:26657"

	LogFormatPlain = "plain"
	LogFormatJSON  = "json"
)

var ErrInvalidConfig = errorsmod.Register(Codespace, 2, "invalid configuration")

type EthereumConfig struct {
	RPC           string `mapstructure:"rpc"`
	BridgeAddress string `mapstructure:"bridge_address"`
	// KeyFile holds a hex private key; Keystore a geth keystore file unlocked with KeystorePassword
	KeyFile          string `mapstructure:"key_file"`
	Keystore         string `mapstructure:"keystore"`
	KeystorePassword string `mapstructure:"keystore_password"`
}

type HubConfig struct {
	RPC     string `mapstructure:"rpc"`
	ChainID string `mapstructure:"chain_id"`
	KeyFile string `mapstructure:"key_file"`
}

type OrchestratorConfig struct {
	ConfirmationDepth   uint64        `mapstructure:"confirmation_depth"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	RPCTimeout          time.Duration `mapstructure:"rpc_timeout"`
	ScanWindow          uint64        `mapstructure:"scan_window"`
	RescanPolls         uint64        `mapstructure:"rescan_polls"`
	StartHeight         uint64        `mapstructure:"start_height"`
	BackoffMin          time.Duration `mapstructure:"backoff_min"`
	BackoffMax          time.Duration `mapstructure:"backoff_max"`
	SubmitRetries       uint64        `mapstructure:"submit_retries"`
	RelayValsets        bool          `mapstructure:"relay_valsets"`
	RelayBatches        bool          `mapstructure:"relay_batches"`
	RelayConfirmations  uint64        `mapstructure:"relay_confirmations"`
	RequestBatches      bool          `mapstructure:"request_batches"`
	MinBatchFee         string        `mapstructure:"min_batch_fee"`
	FeeReceive          string        `mapstructure:"fee_receive"`
}

// Config is the orchestrator daemon configuration
type Config struct {
	Home     string `mapstructure:"home"`
	LogLevel string `mapstructure:"log_level"`
	// LogFormat is plain or json
	LogFormat string `mapstructure:"log_format"`
	// DataDir holds the checkpoint database, relative paths resolve against Home
	DataDir string `mapstructure:"data_dir"`

	Ethereum     EthereumConfig     `mapstructure:"ethereum"`
	Hub          HubConfig          `mapstructure:"hub"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// DefaultHome returns $HOME/.fxorchestrator, or the relative directory when HOME is unknown
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultHomeDir
	}
	return filepath.Join(home, DefaultHomeDir)
}

// SetDefaults registers every key with its default so env overrides reach Unmarshal
func SetDefaults(v *viper.Viper) {
	d := orchestrator.DefaultConfig()

	v.SetDefault("home", DefaultHome())
	v.SetDefault("log_level", zerolog.InfoLevel.String())
	v.SetDefault("log_format", LogFormatPlain)
	v.SetDefault("data_dir", "data")

	v.SetDefault("ethereum.rpc", "")
	v.SetDefault("ethereum.bridge_address", "")
	v.SetDefault("ethereum.key_file", "")
	v.SetDefault("ethereum.keystore", "")
	v.SetDefault("ethereum.keystore_password", "")

	v.SetDefault("hub.rpc", DefaultHubRPC)
	v.SetDefault("hub.chain_id", "")
	v.SetDefault("hub.key_file", "")

	v.SetDefault("orchestrator.confirmation_depth", d.ConfirmationDepth)
	v.SetDefault("orchestrator.confirmation_timeout", d.ConfirmationTimeout)
	v.SetDefault("orchestrator.poll_interval", d.PollInterval)
	v.SetDefault("orchestrator.rpc_timeout", d.RPCTimeout)
	v.SetDefault("orchestrator.scan_window", d.ScanWindow)
	v.SetDefault("orchestrator.rescan_polls", d.RescanPolls)
	v.SetDefault("orchestrator.start_height", d.StartHeight)
	v.SetDefault("orchestrator.backoff_min", d.BackoffMin)
	v.SetDefault("orchestrator.backoff_max", d.BackoffMax)
	v.SetDefault("orchestrator.submit_retries", d.SubmitRetries)
	v.SetDefault("orchestrator.relay_valsets", d.RelayValsets)
	v.SetDefault("orchestrator.relay_batches", d.RelayBatches)
	v.SetDefault("orchestrator.relay_confirmations", d.RelayConfirmations)
	v.SetDefault("orchestrator.request_batches", d.RequestBatches)
	v.SetDefault("orchestrator.min_batch_fee", d.MinBatchFee.String())
	v.SetDefault("orchestrator.fee_receive", d.FeeReceive)
}

// New returns a viper instance with defaults and FXORCH_ environment overrides
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path, if any, into v and decodes the result
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsmod.Wrapf(ErrInvalidConfig, "read %s: %s", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsmod.Wrap(ErrInvalidConfig, err.Error())
	}
	return cfg, nil
}

// DataPath returns the checkpoint database directory
func (c Config) DataPath() string {
	if filepath.IsAbs(c.DataDir) {
		return c.DataDir
	}
	return filepath.Join(c.Home, c.DataDir)
}

// Level parses LogLevel
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, errorsmod.Wrapf(ErrInvalidConfig, "log level %q", c.LogLevel)
	}
	return level, nil
}

// Validate checks what the daemon needs before it dials anything
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != LogFormatPlain && c.LogFormat != LogFormatJSON {
		return errorsmod.Wrapf(ErrInvalidConfig, "log format %q", c.LogFormat)
	}
	if c.Ethereum.RPC == "" {
		return errorsmod.Wrap(ErrInvalidConfig, "ethereum.rpc is required")
	}
	if err := bridgetypes.ValidateEthAddress(c.Ethereum.BridgeAddress); err != nil {
		return errorsmod.Wrapf(ErrInvalidConfig, "ethereum.bridge_address: %s", err)
	}
	if (c.Ethereum.KeyFile == "") == (c.Ethereum.Keystore == "") {
		return errorsmod.Wrap(ErrInvalidConfig, "exactly one of ethereum.key_file and ethereum.keystore is required")
	}
	if c.Hub.RPC == "" {
		return errorsmod.Wrap(ErrInvalidConfig, "hub.rpc is required")
	}
	if c.Hub.ChainID == "" {
		return errorsmod.Wrap(ErrInvalidConfig, "hub.chain_id is required")
	}
	if c.Hub.KeyFile == "" {
		return errorsmod.Wrap(ErrInvalidConfig, "hub.key_file is required")
	}
	_, err := c.Orchestrator.Loop()
	return err
}

// Loop converts the orchestrator section into the loop configuration
func (o OrchestratorConfig) Loop() (orchestrator.Config, error) {
	minFee, ok := math.NewIntFromString(o.MinBatchFee)
	if !ok || minFee.IsNegative() {
		return orchestrator.Config{}, errorsmod.Wrapf(ErrInvalidConfig, "orchestrator.min_batch_fee %q", o.MinBatchFee)
	}
	if o.FeeReceive != "" {
		if err := bridgetypes.ValidateEthAddress(o.FeeReceive); err != nil {
			return orchestrator.Config{}, errorsmod.Wrapf(ErrInvalidConfig, "orchestrator.fee_receive: %s", err)
		}
	}
	switch {
	case o.ConfirmationDepth == 0:
		return orchestrator.Config{}, errorsmod.Wrap(ErrInvalidConfig, "orchestrator.confirmation_depth must be positive")
	case o.ScanWindow == 0:
		return orchestrator.Config{}, errorsmod.Wrap(ErrInvalidConfig, "orchestrator.scan_window must be positive")
	case o.RescanPolls == 0:
		return orchestrator.Config{}, errorsmod.Wrap(ErrInvalidConfig, "orchestrator.rescan_polls must be positive")
	case o.PollInterval <= 0 || o.RPCTimeout <= 0 || o.ConfirmationTimeout <= 0:
		return orchestrator.Config{}, errorsmod.Wrap(ErrInvalidConfig, "orchestrator intervals must be positive")
	case o.BackoffMin <= 0 || o.BackoffMax < o.BackoffMin:
		return orchestrator.Config{}, errorsmod.Wrapf(ErrInvalidConfig, "orchestrator backoff %s..%s", o.BackoffMin, o.BackoffMax)
	}

	return orchestrator.Config{
		ConfirmationDepth:   o.ConfirmationDepth,
		ConfirmationTimeout: o.ConfirmationTimeout,
		PollInterval:        o.PollInterval,
		RPCTimeout:          o.RPCTimeout,
		ScanWindow:          o.ScanWindow,
		RescanPolls:         o.RescanPolls,
		StartHeight:         o.StartHeight,
		BackoffMin:          o.BackoffMin,
		BackoffMax:          o.BackoffMax,
		SubmitRetries:       o.SubmitRetries,
		RelayValsets:        o.RelayValsets,
		RelayBatches:        o.RelayBatches,
		RelayConfirmations:  o.RelayConfirmations,
		RequestBatches:      o.RequestBatches,
		MinBatchFee:         minFee,
		FeeReceive:          o.FeeReceive,
	}, nil
}
