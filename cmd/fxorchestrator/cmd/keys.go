package cmd

import (
	"fmt"
	"os"

	errorsmod "cosmossdk.io/errors"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/functionx/fx-bridge/config"
	"github.com/functionx/fx-bridge/hub"
)

// KeysCmd groups the key file helpers
func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the orchestrator key files",
	}
	cmd.AddCommand(keysShowCmd(), keysGenerateCmd())
	return cmd
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the hub account and EVM address of the configured keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Hub.KeyFile != "" {
				key, err := hub.LoadKey(cfg.Hub.KeyFile)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "orchestrator: %s\n", sdk.AccAddress(key.PubKey().Address()))
			}
			if cfg.Ethereum.KeyFile != "" || cfg.Ethereum.Keystore != "" {
				signer, err := loadEthSigner(cfg.Ethereum)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "eth_address: %s\n", signer.Address())
			}
			return nil
		},
	}
}

func keysGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Create the configured hub and EVM key files",
		Long:  "Create fresh keys at hub.key_file and ethereum.key_file. Existing files are never overwritten.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Hub.KeyFile == "" || cfg.Ethereum.KeyFile == "" {
				return errorsmod.Wrap(config.ErrInvalidConfig, "hub.key_file and ethereum.key_file are required")
			}
			for _, path := range []string{cfg.Hub.KeyFile, cfg.Ethereum.KeyFile} {
				if _, err := os.Stat(path); err == nil {
					return errorsmod.Wrapf(config.ErrInvalidConfig, "%s already exists", path)
				}
			}

			hubKey := secp256k1.GenPrivKey()
			if err := hub.SaveKey(cfg.Hub.KeyFile, hubKey); err != nil {
				return err
			}
			ethKey, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveECDSA(cfg.Ethereum.KeyFile, ethKey); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "orchestrator: %s\n", sdk.AccAddress(hubKey.PubKey().Address()))
			fmt.Fprintf(out, "eth_address: %s\n", crypto.PubkeyToAddress(ethKey.PublicKey).Hex())
			return nil
		},
	}
}
