package cmd

import (
	"os"
	"path/filepath"
	"sync"

	"cosmossdk.io/log"
	"github.com/cosmos/cosmos-sdk/client/flags"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/version"
	"github.com/spf13/cobra"

	"github.com/functionx/fx-bridge/config"
)

const (
	AccountAddressPrefix = "fx"

	flagConfig = "config"
)

var sdkConfigOnce sync.Once

// NewRootCmd creates the fxorchestrator command tree. It is called once in the
// main function.
func NewRootCmd() *cobra.Command {
	sdkConfigOnce.Do(func() {
		cfg := sdk.GetConfig()
		cfg.SetBech32PrefixForAccount(AccountAddressPrefix, AccountAddressPrefix+"pub")
		cfg.SetBech32PrefixForValidator(AccountAddressPrefix+"valoper", AccountAddressPrefix+"valoperpub")
		cfg.SetBech32PrefixForConsensusNode(AccountAddressPrefix+"valcons", AccountAddressPrefix+"valconspub")
		cfg.Seal()
	})

	rootCmd := &cobra.Command{
		Use:   "fxorchestrator",
		Short: "fx bridge orchestrator",
		Long: `fxorchestrator observes the bridge contract on an EVM chain, submits the events it sees
as claims to the hub, signs valset and batch confirmations and relays them back to the contract.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String(flagConfig, "", "config file (default <home>/config.toml when present)")

	rootCmd.AddCommand(
		StartCmd(),
		KeysCmd(),
		version.NewVersionCommand(),
	)
	return rootCmd
}

// loadConfig resolves the configuration of cmd from defaults, the config file,
// FXORCH_ environment variables and command flags
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := config.New()
	for key, name := range map[string]string{
		"home":       flags.FlagHome,
		"log_level":  flags.FlagLogLevel,
		"log_format": flags.FlagLogFormat,
	} {
		if f := cmd.Flag(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Config{}, err
			}
		}
	}

	path, _ := cmd.Flags().GetString(flagConfig)
	if path == "" {
		candidate := filepath.Join(v.GetString("home"), "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	return config.Load(v, path)
}

func newLogger(cfg config.Config) (log.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := []log.Option{log.LevelOption(level)}
	if cfg.LogFormat == config.LogFormatJSON {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(os.Stdout, opts...), nil
}
