package models

// TestParams overrides sampling parameters for a case or a whole suite run.
type TestParams struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// TestCase is a named prompt within a suite.
type TestCase struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Prompt    string      `json:"prompt" yaml:"prompt"`
	Reference string      `json:"reference,omitempty" yaml:"reference,omitempty"`
	Tags      []string    `json:"tags,omitempty" yaml:"tags,omitempty"`
	Params    *TestParams `json:"params,omitempty" yaml:"params,omitempty"`
	Weight    *float64    `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// TestSuite is an ordered collection of cases with a default repeat count.
type TestSuite struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Cases       []TestCase `json:"cases" yaml:"cases"`
	Iterations  *int       `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Version     string     `json:"version,omitempty" yaml:"version,omitempty"`
}

// CaseResult is the outcome of one (case, iteration) pair.
// Result is set iff OK; Error is set iff !OK.
type CaseResult struct {
	CaseID    string     `json:"caseId"`
	Iteration int        `json:"iteration"`
	OK        bool       `json:"ok"`
	Error     string     `json:"error,omitempty"`
	Result    *RunResult `json:"result,omitempty"`
}

// AggregateStats summarises a collection of case results.
type AggregateStats struct {
	MeanTokensPerSecond   float64 `json:"meanTokensPerSecond"`
	MeanTTFB              float64 `json:"meanTTFB"`
	MeanTotalTime         float64 `json:"meanTotalTime"`
	MeanCost              float64 `json:"meanCost"`
	StdTokensPerSecond    float64 `json:"stdTokensPerSecond"`
	StdTTFB               float64 `json:"stdTTFB"`
	StdTotalTime          float64 `json:"stdTotalTime"`
	StdCost               float64 `json:"stdCost"`
	SuccessRate           float64 `json:"successRate"`
	TotalPromptTokens     int     `json:"totalPromptTokens"`
	TotalCompletionTokens int     `json:"totalCompletionTokens"`
}

// SuiteRunResult is the full record of one suite run against a model/provider.
type SuiteRunResult struct {
	SuiteID    string         `json:"suiteId"`
	Model      string         `json:"model"`
	Provider   string         `json:"provider"`
	StartedAt  string         `json:"startedAt"`
	FinishedAt string         `json:"finishedAt"`
	Results    []CaseResult   `json:"results"`
	Aggregates AggregateStats `json:"aggregates"`
}

// SuiteProgress reports a step of a suite run before it starts.
type SuiteProgress struct {
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}
