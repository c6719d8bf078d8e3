package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/models"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		provider    string
		maxTokens   int
		temperature float64
		topP        float64
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "run <model> <prompt...>",
		Short: "Time a single streamed completion",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.requireKey(); err != nil {
				return err
			}

			target, err := a.router.Resolve(args[0], provider)
			if err != nil {
				return err
			}
			cfg := models.RunConfig{
				Model:     target.Model,
				Provider:  target.Provider,
				Prompt:    strings.Join(args[1:], " "),
				MaxTokens: maxTokens,
			}
			if cfg.MaxTokens <= 0 {
				cfg.MaxTokens = a.cfg.Runner.DefaultMaxTokens
			}
			if cmd.Flags().Changed("temperature") {
				cfg.Temperature = &temperature
			}
			if cmd.Flags().Changed("top-p") {
				cfg.TopP = &topP
			}

			ctx, stop := signalContext()
			defer stop()
			a.loadPricing(ctx)

			status := newStatusLine()
			res, err := a.client.Run(ctx, cfg, func(p models.Progress) {
				status.Set(fmt.Sprintf("%3.0f%% %s", p.Percent, p.Message))
			})
			status.Done()
			if apierr.IsCancelled(err) {
				return fmt.Errorf("run cancelled")
			}
			if err != nil {
				return err
			}
			if _, err := a.history.Record(ctx, *res); err != nil {
				fmt.Fprintf(os.Stderr, "warning: record history: %v\n", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printRunResult(os.Stdout, res)
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "upstream provider (default auto, or the alias pin)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "completion token limit (default runner.default_max_tokens)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().Float64Var(&topP, "top-p", 0, "nucleus sampling probability")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
