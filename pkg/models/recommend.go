package models

// Weights controls the composite score. Values need not sum to 1.
type Weights struct {
	Speed   float64 `json:"speed" yaml:"speed" toml:"speed"`
	Latency float64 `json:"latency" yaml:"latency" toml:"latency"`
	Cost    float64 `json:"cost" yaml:"cost" toml:"cost"`
}

// DefaultWeights favours throughput slightly over latency and cost.
var DefaultWeights = Weights{Speed: 0.4, Latency: 0.3, Cost: 0.3}

// Constraints are optional hard limits applied before scoring.
type Constraints struct {
	BudgetPer1k *float64 `json:"budgetPer1k,omitempty"`
	MaxTTFB     *float64 `json:"maxTTFB,omitempty"`
	MinTPS      *float64 `json:"minTPS,omitempty"`
	Weights     *Weights `json:"weights,omitempty"`
}

// Candidate is one benchmarked model inside a recommendation run.
type Candidate struct {
	ModelID    string         `json:"modelId"`
	Provider   string         `json:"provider"`
	Aggregates AggregateStats `json:"aggregates"`
	CostPer1k  *float64       `json:"costPer1k,omitempty"`
	Score      float64        `json:"score"`
	Rank       int            `json:"rank"`
}

// Recommendation is a ranked candidate list.
type Recommendation struct {
	SuiteID            string      `json:"suiteId"`
	Provider           string      `json:"provider"`
	Candidates         []Candidate `json:"candidates"`
	ConstraintsRelaxed bool        `json:"constraintsRelaxed"`
}

// WizardProgress reports recommendation progress.
type WizardProgress struct {
	Step      int    `json:"step"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
	Cancelled bool   `json:"cancelled,omitempty"`
}
