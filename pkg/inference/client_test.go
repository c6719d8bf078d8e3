package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/models"
)

type fakePricing map[string]models.ModelPricing

func (f fakePricing) Pricing(id string) (models.ModelPricing, bool) {
	p, ok := f[id]
	return p, ok
}

func ptr[T any](v T) *T { return &v }

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		cur := t
		t = t.Add(step)
		return cur
	}
}

func chunk(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

func sseServer(t *testing.T, lines []string, inspect func(r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if inspect != nil {
			inspect(r, body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, l := range lines {
			fmt.Fprint(w, l)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunUsesAuthoritativeUsage(t *testing.T) {
	lines := []string{
		chunk("Hello"),
		chunk(" world, this is a somewhat longer reply"),
		"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":7,\"completion_tokens\":50}}\n\n",
		"data: [DONE]\n\n",
	}
	srv := sseServer(t, lines, nil)

	c := New(Options{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Pricing: fakePricing{"openai/gpt-4o": {Input: ptr(0.01), Output: ptr(0.03)}},
	})
	res, err := c.Run(context.Background(), models.RunConfig{
		Model: "openai/gpt-4o", Provider: "auto", Prompt: "hi", MaxTokens: 100,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello world, this is a somewhat longer reply", res.Output)
	assert.Equal(t, 50, res.CompletionTokens)
	require.NotNil(t, res.PromptTokens)
	assert.Equal(t, 7, *res.PromptTokens)
	assert.Greater(t, res.TotalTime, 0.0)
	assert.InDelta(t, 50/res.TotalTime, res.TokensPerSecond, 1e-9)
	assert.InDelta(t, 7.0/1000*0.01+50.0/1000*0.03, res.Cost, 1e-12)
}

func TestRunHeuristicTokens(t *testing.T) {
	srv := sseServer(t, []string{chunk("Hello"), chunk(" world"), "data: [DONE]\n\n"}, nil)

	c := New(Options{BaseURL: srv.URL})
	res, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 10}, nil)
	require.NoError(t, err)

	// ceil(5/4) + ceil(6/4)
	assert.Equal(t, 4, res.CompletionTokens)
	assert.Nil(t, res.PromptTokens)
	assert.InDelta(t, 4.0/1000*FallbackCostPer1k, res.Cost, 1e-12)
}

func TestRunTimingAndProgress(t *testing.T) {
	srv := sseServer(t, []string{chunk("abcd"), chunk("efgh"), "data: [DONE]\n\n"}, nil)

	c := New(Options{BaseURL: srv.URL, Now: steppingClock(100 * time.Millisecond)})
	var progress []models.Progress
	res, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 2},
		func(p models.Progress) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.InDelta(t, 0.1, res.TimeToFirstToken, 1e-9)
	assert.InDelta(t, 0.2, res.TotalTime, 1e-9)
	assert.InDelta(t, 10.0, res.TokensPerSecond, 1e-9)
	assert.Equal(t, "2026-01-02T03:04:05.200Z", res.Timestamp)

	require.Len(t, progress, 5)
	assert.Equal(t, 10.0, progress[0].Percent)
	assert.Equal(t, 30.0, progress[1].Percent)
	assert.Equal(t, 60.0, progress[2].Percent)
	assert.Equal(t, 90.0, progress[3].Percent)
	assert.Equal(t, 100.0, progress[4].Percent)
}

func TestRunProgressClampedBelowCompletion(t *testing.T) {
	srv := sseServer(t, []string{chunk("a very long fragment that exceeds the budget")}, nil)

	c := New(Options{BaseURL: srv.URL})
	var seen []float64
	_, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 1},
		func(p models.Progress) { seen = append(seen, p.Percent) })
	require.NoError(t, err)
	assert.Equal(t, 99.0, seen[len(seen)-2])
}

func TestRunRequestShape(t *testing.T) {
	var got map[string]any
	var hdr http.Header
	srv := sseServer(t, []string{"data: [DONE]\n\n"}, func(r *http.Request, body map[string]any) {
		got = body
		hdr = r.Header.Clone()
	})

	c := New(Options{BaseURL: srv.URL, APIKey: "sk-or-v1-abc", Referer: "https://example.test", Title: "bench", UserAgent: "routebench"})
	_, err := c.Run(context.Background(), models.RunConfig{
		Model: "anthropic/claude-3-haiku", Provider: "Anthropic", Prompt: "hello", MaxTokens: 64, TopP: ptr(0.9),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-or-v1-abc", hdr.Get("Authorization"))
	assert.Equal(t, "text/event-stream", hdr.Get("Accept"))
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, "https://example.test", hdr.Get("HTTP-Referer"))
	assert.Equal(t, "bench", hdr.Get("X-Title"))

	assert.Equal(t, true, got["stream"])
	assert.Equal(t, 64.0, got["max_tokens"])
	assert.Equal(t, 0.9, got["top_p"])
	_, hasTemp := got["temperature"]
	assert.False(t, hasTemp, "unset temperature must be omitted")
	provider, ok := got["provider"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"Anthropic"}, provider["order"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestRunAutoProviderOmitsRouting(t *testing.T) {
	var got map[string]any
	srv := sseServer(t, []string{"data: [DONE]\n\n"}, func(_ *http.Request, body map[string]any) { got = body })

	c := New(Options{BaseURL: srv.URL})
	_, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 8}, nil)
	require.NoError(t, err)
	_, has := got["provider"]
	assert.False(t, has)
}

func TestRunAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	_, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 8}, nil)

	var apiErr *apierr.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, `API Error: 401 Unauthorized - {"error":{"message":"bad key"}}`, err.Error())
}

func TestRunTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 8}, nil)

	var netErr *apierr.NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.True(t, netErr.Timeout())
	assert.False(t, apierr.IsCancelled(err))
}

func TestRunConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url})
	_, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 8}, nil)

	var netErr *apierr.NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.False(t, netErr.Timeout())
}

func TestCancelMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chunk("first"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	_, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 8},
		func(p models.Progress) {
			if p.Message != "Connecting..." && p.Percent > 30 {
				c.Cancel()
			}
		})

	require.Error(t, err)
	assert.True(t, apierr.IsCancelled(err), "got %v", err)
	var se *apierr.StreamError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apierr.KindCancelled, se.Kind)
}

func TestCancelBeforeRequestSent(t *testing.T) {
	srv := sseServer(t, []string{chunk("never"), "data: [DONE]\n\n"}, nil)

	c := New(Options{BaseURL: srv.URL})
	_, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 8},
		func(p models.Progress) {
			if p.Message == "Connecting..." {
				c.Cancel()
			}
		})

	require.Error(t, err)
	var se *apierr.StreamError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, apierr.KindCancelled, se.Kind)
}

func TestCancelIdleIsNoop(t *testing.T) {
	srv := sseServer(t, []string{chunk("ok"), "data: [DONE]\n\n"}, nil)

	c := New(Options{BaseURL: srv.URL})
	c.Cancel()
	res, err := c.Run(context.Background(), models.RunConfig{Model: "x/y", Provider: "auto", Prompt: "p", MaxTokens: 8}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Output)
}
