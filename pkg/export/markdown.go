package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pario-ai/routebench/pkg/models"
)

// SuiteMarkdown renders an executive summary report for a suite run.
func SuiteMarkdown(res models.SuiteRunResult, now time.Time) string {
	agg := res.Aggregates
	var b strings.Builder

	b.WriteString("# Routebench Report\n\n")
	fmt.Fprintf(&b, "- Date: %s\n", now.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Suite: %s\n", res.SuiteID)
	fmt.Fprintf(&b, "- Model: %s\n", res.Model)
	fmt.Fprintf(&b, "- Provider: %s\n", res.Provider)
	fmt.Fprintf(&b, "- Runs: %d\n\n", len(res.Results))

	b.WriteString("## Executive Summary\n")
	fmt.Fprintf(&b, "- Mean Tokens/sec: %.2f\n", agg.MeanTokensPerSecond)
	fmt.Fprintf(&b, "- Mean TTFB (s): %.2f\n", agg.MeanTTFB)
	fmt.Fprintf(&b, "- Mean Total Time (s): %.2f\n", agg.MeanTotalTime)
	fmt.Fprintf(&b, "- Mean Cost (USD): $%.4f\n", agg.MeanCost)
	fmt.Fprintf(&b, "- Success Rate: %.1f%%\n\n", agg.SuccessRate*100)

	b.WriteString("## Detailed Results\n")
	b.WriteString("| Case ID | Iter | TPS | TTFB (s) | Total (s) | Cost (USD) | Prompt Toks | Completion Toks | Error |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---|\n")
	for _, r := range res.Results {
		if run := r.Result; r.OK && run != nil {
			prompt := ""
			if run.PromptTokens != nil {
				prompt = fmt.Sprint(*run.PromptTokens)
			}
			fmt.Fprintf(&b, "| %s | %d | %.2f | %.2f | %.2f | $%.4f | %s | %d | |\n",
				cell(r.CaseID), r.Iteration, run.TokensPerSecond, run.TimeToFirstToken,
				run.TotalTime, run.Cost, prompt, run.CompletionTokens)
			continue
		}
		fmt.Fprintf(&b, "| %s | %d |  |  |  |  |  |  | %s |\n", cell(r.CaseID), r.Iteration, cell(failureText(r)))
	}
	b.WriteString("\n")

	b.WriteString("## Aggregates\n")
	fmt.Fprintf(&b, "- Tokens/sec: mean=%.2f, std=%.2f\n", agg.MeanTokensPerSecond, agg.StdTokensPerSecond)
	fmt.Fprintf(&b, "- TTFB: mean=%.2f, std=%.2f\n", agg.MeanTTFB, agg.StdTTFB)
	fmt.Fprintf(&b, "- Total Time: mean=%.2f, std=%.2f\n", agg.MeanTotalTime, agg.StdTotalTime)
	fmt.Fprintf(&b, "- Cost: mean=$%.4f, std=$%.4f\n", agg.MeanCost, agg.StdCost)
	fmt.Fprintf(&b, "- Total Prompt Tokens: %d\n", agg.TotalPromptTokens)
	fmt.Fprintf(&b, "- Total Completion Tokens: %d\n", agg.TotalCompletionTokens)

	return b.String()
}

// SuiteHTML renders the Markdown report as a standalone HTML page.
func SuiteHTML(res models.SuiteRunResult, now time.Time) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(SuiteMarkdown(res, now)), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Routebench Report: %s</title>\n", html.EscapeString(res.SuiteID))
	page.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2em auto}" +
		"table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// cell keeps free text from breaking a table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
