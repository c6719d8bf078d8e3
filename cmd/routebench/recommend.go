package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/routebench/pkg/models"
	"github.com/pario-ai/routebench/pkg/recommend"
)

func newRecommendCmd(configPath *string) *cobra.Command {
	var (
		suiteID  string
		provider string
		budget   float64
		maxTTFB  float64
		minTPS   float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "recommend <model> <model...>",
		Short: "Benchmark candidate models briefly and rank them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.requireKey(); err != nil {
				return err
			}

			if suiteID == "" {
				suiteID = a.cfg.Recommend.Suite
			}
			suite, err := a.suites.Get(suiteID)
			if err != nil {
				return err
			}
			modelIDs, err := a.router.ResolveAll(args, provider)
			if err != nil {
				return err
			}

			weights := a.cfg.Recommend.Weights
			constraints := models.Constraints{Weights: &weights}
			if cmd.Flags().Changed("budget") {
				constraints.BudgetPer1k = &budget
			}
			if cmd.Flags().Changed("max-ttfb") {
				constraints.MaxTTFB = &maxTTFB
			}
			if cmd.Flags().Changed("min-tps") {
				constraints.MinTPS = &minTPS
			}

			ctx, stop := signalContext()
			defer stop()
			a.loadPricing(ctx)

			status := newStatusLine()
			rec, err := recommend.New(a.client, a.recommendOptions()).Recommend(ctx, recommend.Request{
				ModelIDs:    modelIDs,
				Suite:       suite,
				Provider:    provider,
				Constraints: constraints,
			}, func(p models.WizardProgress) {
				status.Set(fmt.Sprintf("[%d/%d] %s", p.Step, p.Total, p.Message))
			})
			status.Done()
			if errors.Is(err, recommend.ErrCancelled) {
				return errors.New("recommendation cancelled")
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			return printRecommendation(rec)
		},
	}

	cmd.Flags().StringVarP(&suiteID, "suite", "s", "", "suite whose first cases are run (default recommend.suite)")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "upstream provider for every candidate")
	cmd.Flags().Float64Var(&budget, "budget", 0, "max estimated USD per 1k completion tokens")
	cmd.Flags().Float64Var(&maxTTFB, "max-ttfb", 0, "max mean time to first token in seconds")
	cmd.Flags().Float64Var(&minTPS, "min-tps", 0, "min mean tokens per second")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the recommendation as JSON")
	return cmd
}

func printRecommendation(rec *models.Recommendation) error {
	if rec.ConstraintsRelaxed {
		fmt.Fprintln(os.Stderr, "No candidate met every constraint; ranking all candidates.")
	}
	w := newTable(os.Stdout)
	fmt.Fprintln(w, "RANK\tMODEL\tSCORE\tTOK/S\tTTFB\tCOST/1K\tSUCCESS")
	for _, c := range rec.Candidates {
		cost := "-"
		if c.CostPer1k != nil {
			cost = formatCost(*c.CostPer1k)
		}
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%.2f\t%.2fs\t%s\t%.0f%%\n",
			c.Rank, truncate(c.ModelID, modelColumnWidth), c.Score,
			c.Aggregates.MeanTokensPerSecond, c.Aggregates.MeanTTFB, cost, c.Aggregates.SuccessRate*100)
	}
	return w.Flush()
}
