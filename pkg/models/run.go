package models

// ProviderAuto lets the router pick the upstream provider.
const ProviderAuto = "auto"

// RunConfig is the immutable input to a single timed run.
type RunConfig struct {
	Model       string   `json:"model"`
	Provider    string   `json:"provider"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"maxTokens"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
}

// RunResult is the performance record of one completed run.
type RunResult struct {
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	Prompt           string  `json:"prompt"`
	Output           string  `json:"output"`
	CompletionTokens int     `json:"completionTokens"`
	PromptTokens     *int    `json:"promptTokens,omitempty"`
	TotalTime        float64 `json:"totalTime"`
	TimeToFirstToken float64 `json:"timeToFirstToken"`
	TokensPerSecond  float64 `json:"tokensPerSecond"`
	Cost             float64 `json:"cost"`
	Timestamp        string  `json:"timestamp"`
}

// PromptTokenCount returns the prompt token count, or 0 when unknown.
func (r *RunResult) PromptTokenCount() int {
	if r == nil || r.PromptTokens == nil {
		return 0
	}
	return *r.PromptTokens
}

// Progress is a run progress checkpoint. Percent is in [0, 100].
type Progress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}
