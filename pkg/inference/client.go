// Package inference issues single timed streaming runs against the
// chat-completion endpoint and derives their performance metrics.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/models"
	"github.com/pario-ai/routebench/pkg/sse"
)

// DefaultTimeout bounds a whole run, connect through last byte.
const DefaultTimeout = 60 * time.Second

// charsPerToken is the heuristic used until the upstream reports usage.
const charsPerToken = 4

const timestampLayout = "2006-01-02T15:04:05.000Z"

var errTimedOut = errors.New("timed out")

// PricingSource looks up cached per-model pricing.
type PricingSource interface {
	Pricing(modelID string) (models.ModelPricing, bool)
}

// ProgressFunc receives run progress checkpoints.
type ProgressFunc func(models.Progress)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Referer    string
	Title      string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Pricing    PricingSource
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Client runs one streaming request at a time and can cancel it.
type Client struct {
	opts Options
	http *http.Client

	mu     sync.Mutex
	apiKey string
	cancel context.CancelCauseFunc
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc, apiKey: opts.APIKey}
}

// SetAPIKey replaces the bearer credential for subsequent runs.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// Cancel aborts the in-flight run, if any. The run fails with a cancelled
// StreamError.
func (c *Client) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel(apierr.ErrCancelled)
	}
}

// Run performs one timed streaming request.
func (c *Client) Run(ctx context.Context, cfg models.RunConfig, onProgress ProgressFunc) (*models.RunResult, error) {
	// The run is cancellable from its first step on.
	runCtx, cancel := context.WithCancelCause(ctx)
	c.mu.Lock()
	c.cancel = cancel
	apiKey := c.apiKey
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel(nil)
	}()

	if onProgress == nil {
		onProgress = func(models.Progress) {}
	}
	start := c.opts.Now()
	onProgress(models.Progress{Percent: 10, Message: "Connecting..."})

	body, err := json.Marshal(buildRequest(cfg))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if runCtx.Err() != nil {
		return nil, classify(runCtx, runCtx.Err(), false)
	}

	reqCtx, stop := context.WithTimeoutCause(runCtx, c.opts.Timeout, errTimedOut)
	defer stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		strings.TrimRight(c.opts.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(reqCtx, err, false)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, apierr.MaxBodyLen))
		return nil, apierr.NewAPIError(resp.StatusCode, http.StatusText(resp.StatusCode), errBody)
	}

	onProgress(models.Progress{Percent: 30, Message: "Receiving response..."})

	st := &runState{cfg: cfg, onProgress: onProgress, now: c.opts.Now}
	var parser sse.Parser
	buf := make([]byte, 4096)
	for {
		if reqCtx.Err() != nil {
			return nil, classify(reqCtx, reqCtx.Err(), true)
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			st.apply(parser.Feed(buf[:n]))
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, classify(reqCtx, readErr, true)
		}
	}
	st.apply(parser.Flush())

	end := c.opts.Now()
	onProgress(models.Progress{Percent: 100, Message: "Completed"})
	return st.result(start, end, c.pricing(cfg.Model)), nil
}

func (c *Client) pricing(modelID string) *models.ModelPricing {
	if c.opts.Pricing == nil {
		return nil
	}
	p, ok := c.opts.Pricing.Pricing(modelID)
	if !ok {
		return nil
	}
	return &p
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.opts.Referer != "" {
		req.Header.Set("HTTP-Referer", c.opts.Referer)
	}
	if c.opts.Title != "" {
		req.Header.Set("X-Title", c.opts.Title)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
}

func buildRequest(cfg models.RunConfig) models.ChatCompletionRequest {
	req := models.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    []models.ChatMessage{{Role: "user", Content: cfg.Prompt}},
		MaxTokens:   cfg.MaxTokens,
		Stream:      true,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
	if cfg.Provider != "" && cfg.Provider != models.ProviderAuto {
		req.Provider = &models.ProviderPreferences{Order: []string{cfg.Provider}}
	}
	return req
}

// classify maps a transport error to the taxonomy, using the context cause
// to tell an explicit cancel from a timeout.
func classify(ctx context.Context, err error, streaming bool) error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, apierr.ErrCancelled), errors.Is(cause, context.Canceled):
		return apierr.Cancelled()
	case errors.Is(cause, errTimedOut):
		return &apierr.NetworkError{Msg: "timed out", Err: err}
	case streaming:
		return &apierr.StreamError{Kind: apierr.KindTransport, Err: err}
	default:
		return &apierr.NetworkError{Msg: err.Error(), Err: err}
	}
}

// runState accumulates stream events for one run.
type runState struct {
	cfg        models.RunConfig
	onProgress ProgressFunc
	now        func() time.Time

	output          strings.Builder
	firstToken      time.Time
	estimated       int
	usageCompletion *int
	usagePrompt     *int
}

func (s *runState) apply(events []sse.Event) {
	for _, ev := range events {
		if ev.Usage != nil {
			if ev.Usage.CompletionTokens != nil {
				s.usageCompletion = ev.Usage.CompletionTokens
			}
			if ev.Usage.PromptTokens != nil {
				s.usagePrompt = ev.Usage.PromptTokens
			}
		}
		if ev.Content == "" {
			continue
		}
		if s.firstToken.IsZero() {
			s.firstToken = s.now()
		}
		s.output.WriteString(ev.Content)
		s.estimated += EstimateTokens(ev.Content)
		s.onProgress(models.Progress{
			Percent: generatingPercent(s.estimated, s.cfg.MaxTokens),
			Message: fmt.Sprintf("Generating... ~%d tokens", s.estimated),
		})
	}
}

func (s *runState) result(start, end time.Time, pricing *models.ModelPricing) *models.RunResult {
	total := math.Max(0.001, end.Sub(start).Seconds())
	var ttft float64
	if !s.firstToken.IsZero() {
		ttft = s.firstToken.Sub(start).Seconds()
	}
	completion := s.estimated
	if s.usageCompletion != nil {
		completion = *s.usageCompletion
	}
	prompt := 0
	if s.usagePrompt != nil {
		prompt = *s.usagePrompt
	}
	return &models.RunResult{
		Model:            s.cfg.Model,
		Provider:         s.cfg.Provider,
		Prompt:           s.cfg.Prompt,
		Output:           s.output.String(),
		CompletionTokens: completion,
		PromptTokens:     s.usagePrompt,
		TotalTime:        total,
		TimeToFirstToken: ttft,
		TokensPerSecond:  float64(completion) / total,
		Cost:             Cost(pricing, prompt, completion),
		Timestamp:        end.UTC().Format(timestampLayout),
	}
}

// EstimateTokens approximates the token count of a fragment at four
// characters per token, rounding up.
func EstimateTokens(fragment string) int {
	n := utf8.RuneCountInString(fragment)
	return (n + charsPerToken - 1) / charsPerToken
}

func generatingPercent(estimated, maxTokens int) float64 {
	p := 30 + float64(estimated)/float64(max(1, maxTokens))*60
	return math.Min(p, 99)
}
