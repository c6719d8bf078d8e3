package catalog

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pario-ai/routebench/pkg/models"
)

// listKeys are the wrapper keys a catalog list may be nested under.
var listKeys = []string{"data", "models", "providers", "endpoints"}

// providerLabels maps model id namespaces to display names.
var providerLabels = map[string]string{
	"openai":     "OpenAI",
	"anthropic":  "Anthropic",
	"google":     "Google",
	"meta-llama": "Meta",
	"mistralai":  "Mistral",
	"mistral":    "Mistral",
	"together":   "Together",
	"perplexity": "Perplexity",
	"fireworks":  "Fireworks",
}

// extraGuessLabels extend providerLabels when guessing providers for a model.
var extraGuessLabels = map[string]string{
	"x-ai":   "xAI",
	"groq":   "Groq",
	"cohere": "Cohere",
	"ai21":   "AI21",
}

// listItems returns the catalog entries of body, accepting a bare array or
// an array under one of listKeys. A per-model endpoint response may nest the
// list as data.endpoints.
func listItems(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed catalog response")
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root.Array(), nil
	}
	for _, key := range listKeys {
		if v := root.Get(key); v.IsArray() {
			return v.Array(), nil
		}
	}
	if v := root.Get("data.endpoints"); v.IsArray() {
		return v.Array(), nil
	}
	return nil, nil
}

func namespace(modelID string) string {
	prefix, _, _ := strings.Cut(modelID, "/")
	return strings.ToLower(prefix)
}

// ProviderLabel infers the display provider for a model id. fallback is the
// provider field reported by the catalog, if any.
func ProviderLabel(modelID, fallback string) string {
	ns := namespace(modelID)
	if label, ok := providerLabels[ns]; ok {
		return label
	}
	if fallback != "" {
		return fallback
	}
	if ns != "" {
		return ns
	}
	return "Unknown"
}

// GuessProviders returns likely upstream providers for a model id, or nil.
func GuessProviders(modelID string) []string {
	ns := namespace(modelID)
	if label, ok := providerLabels[ns]; ok {
		return []string{label}
	}
	if label, ok := extraGuessLabels[ns]; ok {
		return []string{label}
	}
	return nil
}

func parseModel(m gjson.Result) models.ModelInfo {
	id := m.Get("id").String()
	name := m.Get("name").String()
	if name == "" {
		name = id
	}
	info := models.ModelInfo{
		ID:       id,
		Name:     name,
		Provider: ProviderLabel(id, m.Get("provider").String()),
		Pricing:  parsePricing(m.Get("pricing")),
	}
	for _, key := range []string{"context_length", "contextLength"} {
		if v := m.Get(key); v.Type == gjson.Number && v.Int() > 0 {
			n := int(v.Int())
			info.ContextLength = &n
			break
		}
	}
	return info
}

// parsePricing reads numeric input/prompt and output/completion rates.
// Non-numeric values are ignored; nil is returned when no rate is numeric.
func parsePricing(p gjson.Result) *models.ModelPricing {
	if !p.IsObject() {
		return nil
	}
	pricing := models.ModelPricing{
		Input:  firstNumber(p, "input", "prompt"),
		Output: firstNumber(p, "output", "completion"),
	}
	if pricing.Input == nil && pricing.Output == nil {
		return nil
	}
	return &pricing
}

func firstNumber(obj gjson.Result, keys ...string) *float64 {
	for _, k := range keys {
		if v := obj.Get(k); v.Type == gjson.Number {
			f := v.Float()
			return &f
		}
	}
	return nil
}

// firstString returns the first non-empty string field of obj among keys.
func firstString(obj gjson.Result, keys ...string) string {
	if obj.Type == gjson.String {
		return obj.Str
	}
	for _, k := range keys {
		if v := obj.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func dedupe(items []gjson.Result, keys ...string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		s := firstString(it, keys...)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
