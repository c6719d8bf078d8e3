package models

// ModelPricing holds USD prices per 1000 tokens. Nil means unknown.
type ModelPricing struct {
	Input  *float64 `json:"input,omitempty"`
	Output *float64 `json:"output,omitempty"`
}

// ModelInfo describes a model in the router catalog.
type ModelInfo struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Provider      string        `json:"provider"`
	ContextLength *int          `json:"contextLength,omitempty"`
	Pricing       *ModelPricing `json:"pricing,omitempty"`
}
