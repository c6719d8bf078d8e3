package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/routebench/pkg/export"
	"github.com/pario-ai/routebench/pkg/models"
	"github.com/pario-ai/routebench/pkg/runner"
	"github.com/pario-ai/routebench/pkg/suites"
)

func newSuiteCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Run and manage test suites",
	}
	cmd.AddCommand(
		newSuiteListCmd(configPath),
		newSuiteShowCmd(configPath),
		newSuiteRunCmd(configPath),
		newSuiteImportCmd(configPath),
		newSuiteExportCmd(configPath),
		newSuiteDeleteCmd(configPath),
	)
	return cmd
}

func newSuiteListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom suites",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			all, err := a.suites.List()
			if err != nil {
				return err
			}
			custom, err := a.suites.Custom()
			if err != nil {
				return err
			}

			w := newTable(os.Stdout)
			fmt.Fprintln(w, "ID\tNAME\tCASES\tITERATIONS\tSOURCE")
			for _, s := range all {
				source := "built-in"
				if _, ok := suites.Find(custom, s.ID); ok {
					source = "custom"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					s.ID, truncate(s.Name, 40), len(s.Cases), runner.Iterations(nil, s), source)
			}
			return w.Flush()
		},
	}
}

func newSuiteShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <suite-id>",
		Short: "Show the cases of a suite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := a.suites.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", s.Name, s.ID)
			if s.Description != "" {
				fmt.Println(s.Description)
			}
			fmt.Println()
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "CASE\tNAME\tTAGS\tPROMPT")
			for _, c := range s.Cases {
				prompt := strings.Join(strings.Fields(c.Prompt), " ")
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, strings.Join(c.Tags, ","), truncate(prompt, 60))
			}
			return w.Flush()
		},
	}
}

func newSuiteRunCmd(configPath *string) *cobra.Command {
	var (
		provider   string
		iterations int
		maxTokens  int
		csvPath    string
		reportPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "run <suite-id> <model>",
		Short: "Run every case of a suite against a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.requireKey(); err != nil {
				return err
			}

			suite, err := a.suites.Get(args[0])
			if err != nil {
				return err
			}
			target, err := a.router.Resolve(args[1], provider)
			if err != nil {
				return err
			}

			req := runner.SuiteRequest{Suite: suite, Model: target.Model, Provider: target.Provider}
			if cmd.Flags().Changed("iterations") {
				req.Iterations = &iterations
			}
			if maxTokens > 0 {
				req.Params = &models.TestParams{MaxTokens: &maxTokens}
			}

			ctx, stop := signalContext()
			defer stop()
			a.loadPricing(ctx)

			status := newStatusLine()
			r := runner.New(a.client, a.runnerOptions())
			res, err := r.RunSuite(ctx, req, func(p models.SuiteProgress) {
				status.Set(fmt.Sprintf("[%d/%d] %s", p.Step, p.Total, p.Message))
			})
			status.Done()
			cancelled := errors.Is(err, runner.ErrCancelled)
			if err != nil && !cancelled {
				return err
			}
			if cancelled {
				fmt.Fprintf(os.Stderr, "suite run cancelled after %d of %d runs\n", len(res.Results), len(suite.Cases)*runner.Iterations(req.Iterations, suite))
			} else if _, err := a.history.RecordSuite(ctx, *res); err != nil {
				fmt.Fprintf(os.Stderr, "warning: record history: %v\n", err)
			}

			if csvPath != "" {
				if err := writeFile(csvPath, func(w io.Writer) error { return export.WriteSuiteCSV(w, *res) }); err != nil {
					return err
				}
			}
			if reportPath != "" {
				if err := writeReport(reportPath, *res); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printSuiteResult(os.Stdout, res)
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "upstream provider (default auto, or the alias pin)")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "repeat count per case (default: suite setting)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "override max tokens for every case")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write per-case results as CSV to this file")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a report (.md or .html) to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newSuiteImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import custom suites from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			res, err := a.suites.ImportJSON(data)
			if err != nil {
				return err
			}
			for _, e := range res.Skipped {
				fmt.Fprintf(os.Stderr, "skipped: %v\n", e)
			}
			fmt.Printf("Imported %d suite(s): %s\n", len(res.Imported), strings.Join(res.Imported, ", "))
			return nil
		},
	}
}

func newSuiteExportCmd(configPath *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export custom suites as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := a.suites.ExportJSON()
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if outPath == "" || outPath == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Printf("Exported custom suites to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout, e.g. "+suites.ExportFileName+")")
	return cmd
}

func newSuiteDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <suite-id>",
		Short: "Delete a custom suite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.suites.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted suite %s\n", args[0])
			return nil
		},
	}
}

func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeReport renders Markdown, or HTML when path ends in .html/.htm.
func writeReport(path string, res models.SuiteRunResult) error {
	now := time.Now()
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		page, err := export.SuiteHTML(res, now)
		if err != nil {
			return err
		}
		data = page
	default:
		data = []byte(export.SuiteMarkdown(res, now))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
