package inference

import "github.com/pario-ai/routebench/pkg/models"

// FallbackCostPer1k is charged per 1000 completion tokens when no pricing is known.
const FallbackCostPer1k = 0.002

// Cost prices a run. With no pricing, or pricing that has neither an input
// nor an output rate, the flat fallback applies to completion tokens.
func Cost(p *models.ModelPricing, promptTokens, completionTokens int) float64 {
	if p == nil || (p.Input == nil && p.Output == nil) {
		return float64(completionTokens) / 1000 * FallbackCostPer1k
	}
	var cost float64
	if p.Input != nil {
		cost += float64(promptTokens) / 1000 * *p.Input
	}
	if p.Output != nil {
		cost += float64(completionTokens) / 1000 * *p.Output
	}
	return cost
}
