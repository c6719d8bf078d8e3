package aggregate

import (
	"math"

	"github.com/pario-ai/routebench/pkg/models"
)

// Aggregate computes summary statistics over results. Only successful
// results with a finite throughput contribute to means, deviations and token
// totals. The success rate counts every successful attempt, whatever its
// throughput, against every attempt.
func Aggregate(results []models.CaseResult) models.AggregateStats {
	var tps, ttfb, total, cost []float64
	var stats models.AggregateStats
	ok := 0

	for _, r := range results {
		if !r.OK || r.Result == nil {
			continue
		}
		ok++
		res := r.Result
		if math.IsNaN(res.TokensPerSecond) || math.IsInf(res.TokensPerSecond, 0) {
			continue
		}
		tps = append(tps, res.TokensPerSecond)
		ttfb = append(ttfb, res.TimeToFirstToken)
		total = append(total, res.TotalTime)
		cost = append(cost, res.Cost)
		stats.TotalPromptTokens += res.PromptTokenCount()
		stats.TotalCompletionTokens += res.CompletionTokens
	}

	stats.MeanTokensPerSecond = Mean(tps)
	stats.MeanTTFB = Mean(ttfb)
	stats.MeanTotalTime = Mean(total)
	stats.MeanCost = Mean(cost)
	stats.StdTokensPerSecond = SampleStdDev(tps)
	stats.StdTTFB = SampleStdDev(ttfb)
	stats.StdTotalTime = SampleStdDev(total)
	stats.StdCost = SampleStdDev(cost)
	if len(results) > 0 {
		stats.SuccessRate = float64(ok) / float64(len(results))
	}
	return stats
}
