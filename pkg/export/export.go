// Package export renders suite runs and single runs for saving to disk.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/pario-ai/routebench/pkg/models"
)

// Suggested file names for each export kind.
const (
	ResultsFileName = "routebench-test-results.json"
	CSVFileName     = "routebench-results.csv"
	ReportFileName  = "routebench-report.md"
	HTMLFileName    = "routebench-report.html"
)

var csvHeader = []string{
	"caseId", "iteration", "ok",
	"tokensPerSecond", "timeToFirstToken", "totalTime", "cost",
	"promptTokens", "completionTokens", "error",
}

// WriteSuiteCSV writes one row per case result. Metric cells are empty for
// failed results.
func WriteSuiteCSV(w io.Writer, res models.SuiteRunResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range res.Results {
		row := []string{r.CaseID, strconv.Itoa(r.Iteration), strconv.FormatBool(r.OK), "", "", "", "", "", "", ""}
		if run := r.Result; r.OK && run != nil {
			row[3] = strconv.FormatFloat(run.TokensPerSecond, 'f', 2, 64)
			row[4] = strconv.FormatFloat(run.TimeToFirstToken, 'f', 2, 64)
			row[5] = strconv.FormatFloat(run.TotalTime, 'f', 2, 64)
			row[6] = strconv.FormatFloat(run.Cost, 'f', 4, 64)
			if run.PromptTokens != nil {
				row[7] = strconv.Itoa(*run.PromptTokens)
			}
			row[8] = strconv.Itoa(run.CompletionTokens)
		} else {
			row[9] = failureText(r)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResultsJSON writes single-run results as an indented JSON array.
func WriteResultsJSON(w io.Writer, results []models.RunResult) error {
	if results == nil {
		results = []models.RunResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

func failureText(r models.CaseResult) string {
	if r.Error != "" {
		return r.Error
	}
	return "Error"
}
