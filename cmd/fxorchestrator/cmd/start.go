package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/hashicorp/go-metrics"
	"github.com/spf13/cobra"

	"github.com/functionx/fx-bridge/config"
	"github.com/functionx/fx-bridge/ethereum"
	"github.com/functionx/fx-bridge/hub"
	"github.com/functionx/fx-bridge/orchestrator"
)

// StartCmd runs the orchestrator until it receives SIGINT or SIGTERM
func StartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the orchestrator",
		Long: `Run the orchestrator against the configured EVM chain and hub. Metrics are kept in
memory and dumped to stderr on SIGUSR1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			sink := metrics.NewInmemSink(10*time.Second, time.Minute)
			metrics.DefaultInmemSignal(sink)
			if _, err := metrics.NewGlobal(metrics.DefaultConfig("fxorchestrator"), sink); err != nil {
				return errorsmod.Wrap(err, "metrics")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, logger, cfg)
		},
	}
}

func loadEthSigner(cfg config.EthereumConfig) (*ethereum.KeySigner, error) {
	if cfg.Keystore != "" {
		return ethereum.LoadKeystoreSigner(cfg.Keystore, cfg.KeystorePassword)
	}
	return ethereum.LoadKeySigner(cfg.KeyFile)
}

func run(ctx context.Context, logger log.Logger, cfg config.Config) error {
	loop, err := cfg.Orchestrator.Loop()
	if err != nil {
		return err
	}
	signer, err := loadEthSigner(cfg.Ethereum)
	if err != nil {
		return err
	}
	hubKey, err := hub.LoadKey(cfg.Hub.KeyFile)
	if err != nil {
		return err
	}

	// confirms and relayed transactions share one signing queue
	serial := orchestrator.NewSerialSigner(signer)
	eth, err := ethereum.Dial(ctx, logger, cfg.Ethereum.RPC, cfg.Ethereum.BridgeAddress, serial)
	if err != nil {
		return err
	}
	hubClient, err := hub.Dial(logger, cfg.Hub.RPC, cfg.Hub.ChainID, hubKey)
	if err != nil {
		return err
	}

	store, err := orchestrator.OpenCheckpointStore(cfg.DataPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close checkpoint store", "error", err)
		}
	}()

	orchestratorAddr := hubClient.Address().String()
	logger.Info("starting orchestrator",
		"orchestrator", orchestratorAddr,
		"eth_address", signer.Address(),
		"bridge", eth.Bridge(),
		"hub_chain_id", cfg.Hub.ChainID,
		"data_dir", cfg.DataPath(),
	)
	return orchestrator.New(logger, loop, eth, hubClient, serial, orchestratorAddr, store).Run(ctx)
}
