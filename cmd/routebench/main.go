package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/routebench/pkg/config"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "routebench",
		Short:         "Routebench: latency, throughput and cost benchmarks for routed LLM APIs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file (.yaml or .toml)")

	root.AddCommand(
		newRunCmd(&configPath),
		newSuiteCmd(&configPath),
		newRecommendCmd(&configPath),
		newModelsCmd(&configPath),
		newProvidersCmd(&configPath),
		newValidateCmd(&configPath),
		newHistoryCmd(&configPath),
		newCacheCmd(&configPath),
		newServeCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
