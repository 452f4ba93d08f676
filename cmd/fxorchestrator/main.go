package main

import (
	"os"

	svrcmd "github.com/cosmos/cosmos-sdk/server/cmd"

	"github.com/functionx/fx-bridge/cmd/fxorchestrator/cmd"
	"github.com/functionx/fx-bridge/config"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := svrcmd.Execute(rootCmd, config.EnvPrefix, config.DefaultHome()); err != nil {
		os.Exit(1)
	}
}
