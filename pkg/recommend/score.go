package recommend

import (
	"math"
	"sort"

	"github.com/pario-ai/routebench/pkg/aggregate"
	"github.com/pario-ai/routebench/pkg/models"
)

// CostPer1k estimates USD per 1000 tokens from a candidate's aggregates.
// It returns nil when no tokens were observed.
func CostPer1k(agg models.AggregateStats, numCases int) *float64 {
	if numCases <= 0 {
		return nil
	}
	avgTokens := float64(agg.TotalPromptTokens+agg.TotalCompletionTokens) / float64(numCases)
	if avgTokens <= 0 {
		return nil
	}
	v := agg.MeanCost / (avgTokens / 1000)
	return &v
}

// Filter keeps candidates satisfying every set constraint. A candidate with
// no cost estimate fails a budget constraint. When nothing survives, all
// candidates are returned and relaxed is true.
func Filter(cands []models.Candidate, c models.Constraints) (kept []models.Candidate, relaxed bool) {
	for _, cand := range cands {
		if c.MaxTTFB != nil && cand.Aggregates.MeanTTFB > *c.MaxTTFB {
			continue
		}
		if c.MinTPS != nil && cand.Aggregates.MeanTokensPerSecond < *c.MinTPS {
			continue
		}
		if c.BudgetPer1k != nil {
			cost := math.Inf(1)
			if cand.CostPer1k != nil {
				cost = *cand.CostPer1k
			}
			if cost > *c.BudgetPer1k {
				continue
			}
		}
		kept = append(kept, cand)
	}
	if len(kept) == 0 {
		return append([]models.Candidate(nil), cands...), len(cands) > 0
	}
	return kept, false
}

// Score assigns composite z-score based scores and returns the candidates
// sorted best first with ranks set. Ties keep input order.
func Score(cands []models.Candidate, w models.Weights) []models.Candidate {
	out := append([]models.Candidate(nil), cands...)
	if len(out) == 0 {
		return out
	}

	tps := make([]float64, len(out))
	ttfb := make([]float64, len(out))
	cost := make([]float64, len(out))
	for i, c := range out {
		tps[i] = c.Aggregates.MeanTokensPerSecond
		ttfb[i] = c.Aggregates.MeanTTFB
		cost[i] = costMetric(c)
	}
	zTPS := zScores(tps)
	zTTFB := zScores(ttfb)
	zCost := zScores(cost)

	for i := range out {
		out[i].Score = w.Speed*zTPS[i] - w.Latency*zTTFB[i] - w.Cost*zCost[i]
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func costMetric(c models.Candidate) float64 {
	if c.CostPer1k != nil {
		return *c.CostPer1k
	}
	return c.Aggregates.MeanCost
}

// zScores normalises values against their population mean and deviation.
// A zero deviation is treated as 1.
func zScores(values []float64) []float64 {
	m := aggregate.Mean(values)
	s := aggregate.PopulationStdDev(values)
	if s == 0 {
		s = 1
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - m) / s
	}
	return out
}
