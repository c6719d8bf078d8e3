package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage recorded runs",
	}
	cmd.AddCommand(
		newHistoryListCmd(configPath),
		newHistoryShowCmd(configPath),
		newHistoryPruneCmd(configPath),
		newHistoryClearCmd(configPath),
	)
	return cmd
}

func newHistoryListCmd(configPath *string) *cobra.Command {
	var (
		limit     int
		suiteRuns bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := context.Background()

			if suiteRuns {
				entries, err := a.history.ListSuites(ctx, limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("No suite runs recorded.")
					return nil
				}
				w := newTable(os.Stdout)
				fmt.Fprintln(w, "ID\tWHEN\tSUITE\tMODEL\tRUNS\tSUCCESS\tTOK/S")
				for _, e := range entries {
					r := e.Result
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.0f%%\t%.2f\n",
						e.ID, humanize.Time(e.CreatedAt), r.SuiteID, truncate(r.Model, modelColumnWidth),
						len(r.Results), r.Aggregates.SuccessRate*100, r.Aggregates.MeanTokensPerSecond)
				}
				return w.Flush()
			}

			entries, err := a.history.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "WHEN\tMODEL\tPROVIDER\tTTFB\tTOK/S\tCOST\tPROMPT")
			for _, e := range entries {
				r := e.Result
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.2f\t%s\t%s\n",
					humanize.Time(e.CreatedAt), truncate(r.Model, modelColumnWidth), r.Provider,
					r.TimeToFirstToken, r.TokensPerSecond, formatCost(r.Cost), truncate(r.Prompt, 30))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max entries (0 for all)")
	cmd.Flags().BoolVar(&suiteRuns, "suites", false, "list suite runs instead of single runs")
	return cmd
}

func newHistoryShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <suite-run-id>",
		Short: "Show a recorded suite run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			e, err := a.history.GetSuite(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Recorded %s\n\n", humanize.Time(e.CreatedAt))
			return printSuiteResult(os.Stdout, &e.Result)
		},
	}
}

func newHistoryPruneCmd(configPath *string) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Keep only the newest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.history.Prune(context.Background(), keep); err != nil {
				return err
			}
			fmt.Printf("Kept the newest %d runs and suite runs.\n", keep)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 50, "entries to keep per table")
	return cmd
}

func newHistoryClearCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.history.Clear(context.Background()); err != nil {
				return err
			}
			fmt.Println("History cleared.")
			return nil
		},
	}
}
