package catalog

import "github.com/pario-ai/routebench/pkg/models"

// DefaultModels is returned when the model catalog cannot be fetched.
var DefaultModels = []models.ModelInfo{
	{ID: "openai/gpt-4-turbo", Name: "GPT-4 Turbo", Provider: "OpenAI"},
	{ID: "anthropic/claude-3-opus", Name: "Claude 3 Opus", Provider: "Anthropic"},
	{ID: "google/gemini-pro", Name: "Gemini Pro", Provider: "Google"},
	{ID: "meta-llama/llama-3-70b", Name: "Llama 3 70B", Provider: "Meta"},
	{ID: "mistralai/mixtral-8x7b", Name: "Mixtral 8x7B", Provider: "Mistral"},
}

// DefaultProviders is returned when the provider catalog cannot be fetched.
var DefaultProviders = []string{
	models.ProviderAuto,
	"OpenAI",
	"Anthropic",
	"Google",
	"Together",
	"Replicate",
	"Perplexity",
	"Fireworks",
}

func cloneModels(in []models.ModelInfo) []models.ModelInfo {
	return append([]models.ModelInfo(nil), in...)
}
