package models

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProviderPreferences pins a request to an ordered list of upstream providers.
type ProviderPreferences struct {
	Order []string `json:"order"`
}

// ChatCompletionRequest is the streaming chat completion body sent to the router.
// Optional sampling parameters are pointers so that unset values are omitted
// instead of sent as zero.
type ChatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []ChatMessage        `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
	Temperature *float64             `json:"temperature,omitempty"`
	TopP        *float64             `json:"top_p,omitempty"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
}

// Usage holds authoritative token counts reported by the upstream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
