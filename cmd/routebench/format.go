package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/pario-ai/routebench/pkg/models"
)

// modelColumnWidth caps model ids in tables.
const modelColumnWidth = 40

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// statusLine rewrites a single stderr line while attached to a terminal and
// stays silent otherwise so piped output remains clean.
type statusLine struct {
	enabled bool
	width   int
}

func newStatusLine() *statusLine {
	s := &statusLine{enabled: isTerminal(os.Stderr), width: 80}
	if s.enabled {
		if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && w > 1 {
			s.width = w - 1
		}
	}
	return s
}

func (s *statusLine) Set(msg string) {
	if !s.enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "\r\033[K%s", truncate(msg, s.width))
}

func (s *statusLine) Done() {
	if s.enabled {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
}

func formatCost(c float64) string {
	return fmt.Sprintf("$%.6f", c)
}

func printRunResult(w io.Writer, res *models.RunResult) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Model:\t%s\n", res.Model)
	fmt.Fprintf(tw, "Provider:\t%s\n", res.Provider)
	fmt.Fprintf(tw, "Time to first token:\t%.3fs\n", res.TimeToFirstToken)
	fmt.Fprintf(tw, "Total time:\t%.3fs\n", res.TotalTime)
	fmt.Fprintf(tw, "Tokens/sec:\t%.2f\n", res.TokensPerSecond)
	fmt.Fprintf(tw, "Completion tokens:\t%s\n", humanize.Comma(int64(res.CompletionTokens)))
	if res.PromptTokens != nil {
		fmt.Fprintf(tw, "Prompt tokens:\t%s\n", humanize.Comma(int64(*res.PromptTokens)))
	}
	fmt.Fprintf(tw, "Cost:\t%s\n", formatCost(res.Cost))
	if err := tw.Flush(); err != nil {
		return err
	}
	if out := strings.TrimSpace(res.Output); out != "" {
		fmt.Fprintf(w, "\n%s\n", out)
	}
	return nil
}

func printSuiteResult(w io.Writer, res *models.SuiteRunResult) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "CASE\tITER\tSTATUS\tTTFB\tTOTAL\tTOK/S\tCOST")
	for _, r := range res.Results {
		if !r.OK || r.Result == nil {
			msg := r.Error
			if msg == "" {
				msg = "Error"
			}
			fmt.Fprintf(tw, "%s\t%d\tFAIL\t-\t-\t-\t%s\n", r.CaseID, r.Iteration, truncate(msg, 60))
			continue
		}
		run := r.Result
		fmt.Fprintf(tw, "%s\t%d\tOK\t%.2fs\t%.2fs\t%.2f\t%s\n",
			r.CaseID, r.Iteration, run.TimeToFirstToken, run.TotalTime, run.TokensPerSecond, formatCost(run.Cost))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	agg := res.Aggregates
	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintf(tw, "Suite:\t%s\n", res.SuiteID)
	fmt.Fprintf(tw, "Model:\t%s (%s)\n", res.Model, res.Provider)
	fmt.Fprintf(tw, "Success rate:\t%.0f%%\n", agg.SuccessRate*100)
	fmt.Fprintf(tw, "Mean TTFB:\t%.3fs ± %.3f\n", agg.MeanTTFB, agg.StdTTFB)
	fmt.Fprintf(tw, "Mean total time:\t%.3fs ± %.3f\n", agg.MeanTotalTime, agg.StdTotalTime)
	fmt.Fprintf(tw, "Mean tokens/sec:\t%.2f ± %.2f\n", agg.MeanTokensPerSecond, agg.StdTokensPerSecond)
	fmt.Fprintf(tw, "Mean cost:\t%s\n", formatCost(agg.MeanCost))
	fmt.Fprintf(tw, "Tokens:\t%s prompt / %s completion\n",
		humanize.Comma(int64(agg.TotalPromptTokens)), humanize.Comma(int64(agg.TotalCompletionTokens)))
	return tw.Flush()
}
