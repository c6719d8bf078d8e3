// Package catalog fetches the model, provider and endpoint catalogs from the
// routing API and keeps the pricing table used to cost runs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/models"
)

const (
	// DefaultMetadataTimeout bounds catalog requests.
	DefaultMetadataTimeout = 15 * time.Second
	// DefaultValidateTimeout bounds credential validation.
	DefaultValidateTimeout = 10 * time.Second

	maxCatalogBody = 32 << 20
)

var errTimedOut = errors.New("timed out")

// ResponseCache persists raw catalog responses between sessions.
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	GetStale(key string) ([]byte, bool)
	Put(key string, body []byte) error
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	UserAgent       string
	MetadataTimeout time.Duration
	ValidateTimeout time.Duration
	HTTPClient      *http.Client
	Cache           ResponseCache
}

// Client is the metadata client. The model list fetched by ListModels is
// kept in memory and backs Pricing until Invalidate or the next fetch.
type Client struct {
	opts Options
	http *http.Client

	mu     sync.RWMutex
	apiKey string
	models []models.ModelInfo
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = DefaultMetadataTimeout
	}
	if opts.ValidateTimeout <= 0 {
		opts.ValidateTimeout = DefaultValidateTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc, apiKey: opts.APIKey}
}

// SetAPIKey replaces the credential and drops cached models.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.models = nil
	c.mu.Unlock()
}

// Invalidate drops the in-memory model list and pricing table.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.models = nil
	c.mu.Unlock()
}

// ListModels fetches the model catalog and replaces the pricing table.
func (c *Client) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	body, err := c.fetch(ctx, "models", "/models")
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	items, err := listItems(body)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	out := make([]models.ModelInfo, 0, len(items))
	for _, it := range items {
		out = append(out, parseModel(it))
	}

	c.mu.Lock()
	c.models = out
	c.mu.Unlock()
	return cloneModels(out), nil
}

// ListProviders fetches the provider catalog as deduplicated names.
func (c *Client) ListProviders(ctx context.Context) ([]string, error) {
	body, err := c.fetch(ctx, "providers", "/providers")
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	items, err := listItems(body)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return dedupe(items, "id", "name", "provider"), nil
}

// ListModelEndpoints returns the providers serving modelID, deduplicated in
// catalog order.
func (c *Client) ListModelEndpoints(ctx context.Context, modelID string) ([]string, error) {
	path := "/models/" + escapeModelID(modelID) + "/endpoints"
	body, err := c.fetch(ctx, "endpoints:"+modelID, path)
	if err != nil {
		return nil, fmt.Errorf("list endpoints for %s: %w", modelID, err)
	}
	items, err := listItems(body)
	if err != nil {
		return nil, fmt.Errorf("list endpoints for %s: %w", modelID, err)
	}
	return dedupe(items, "provider_name", "provider", "name", "id"), nil
}

// ValidateCredential reports whether the API accepts the current key. Any
// failure, including a timeout, counts as invalid.
func (c *Client) ValidateCredential(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ValidateTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, "/models")
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode == http.StatusOK
}

// Refresh fetches models and providers concurrently.
func (c *Client) Refresh(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.ListModels(gctx)
		return err
	})
	g.Go(func() error {
		_, err := c.ListProviders(gctx)
		return err
	})
	return g.Wait()
}

// Models returns the in-memory model list without fetching.
func (c *Client) Models() []models.ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneModels(c.models)
}

// GetModel looks up a fetched model by exact id.
func (c *Client) GetModel(id string) (models.ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModelInfo{}, false
}

// Pricing returns cached pricing for modelID. An exact id with pricing wins;
// otherwise the first case-insensitive id or name match is used.
func (c *Client) Pricing(modelID string) (models.ModelPricing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.ID == modelID && m.Pricing != nil {
			return *m.Pricing, true
		}
	}
	for _, m := range c.models {
		if strings.EqualFold(m.ID, modelID) || strings.EqualFold(m.Name, modelID) {
			if m.Pricing == nil {
				return models.ModelPricing{}, false
			}
			return *m.Pricing, true
		}
	}
	return models.ModelPricing{}, false
}

// ModelsOrDefault lists models, returning DefaultModels when the catalog is
// unreachable or empty.
func (c *Client) ModelsOrDefault(ctx context.Context) []models.ModelInfo {
	list, err := c.ListModels(ctx)
	if err != nil {
		log.Printf("catalog: using default models: %v", err)
		return cloneModels(DefaultModels)
	}
	if len(list) == 0 {
		return cloneModels(DefaultModels)
	}
	return list
}

// ProvidersOrDefault lists providers prefixed with "auto", returning
// DefaultProviders when the catalog is unreachable.
func (c *Client) ProvidersOrDefault(ctx context.Context) []string {
	list, err := c.ListProviders(ctx)
	if err != nil {
		log.Printf("catalog: using default providers: %v", err)
		return append([]string(nil), DefaultProviders...)
	}
	return withAuto(list)
}

// ProvidersForModel lists the providers serving modelID prefixed with "auto".
// When the endpoint list is empty or unavailable the providers are guessed
// from the model id namespace.
func (c *Client) ProvidersForModel(ctx context.Context, modelID string) []string {
	list, err := c.ListModelEndpoints(ctx, modelID)
	if err != nil || len(list) == 0 {
		return withAuto(GuessProviders(modelID))
	}
	return withAuto(list)
}

func withAuto(list []string) []string {
	out := []string{models.ProviderAuto}
	for _, p := range list {
		if p != models.ProviderAuto {
			out = append(out, p)
		}
	}
	return out
}

// fetch returns the body for path, preferring a fresh cached copy and
// falling back to a stale one when the network call fails.
func (c *Client) fetch(ctx context.Context, key, path string) ([]byte, error) {
	if c.opts.Cache != nil {
		if body, ok := c.opts.Cache.Get(key); ok {
			return body, nil
		}
	}

	body, err := c.get(ctx, path)
	if err != nil {
		if c.opts.Cache != nil {
			if stale, ok := c.opts.Cache.GetStale(key); ok {
				log.Printf("catalog: serving stale %s: %v", key, err)
				return stale, nil
			}
		}
		return nil, err
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.Put(key, body); err != nil {
			log.Printf("catalog: cache write failed: %v", err)
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.opts.MetadataTimeout, errTimedOut)
	defer cancel()

	req, err := c.newRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(context.Cause(ctx), errTimedOut) {
			return nil, &apierr.NetworkError{Msg: "timed out", Err: err}
		}
		return nil, &apierr.NetworkError{Msg: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))
	if err != nil {
		return nil, &apierr.StreamError{Kind: apierr.KindTransport, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.NewAPIError(resp.StatusCode, http.StatusText(resp.StatusCode), body)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.opts.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.mu.RLock()
	key := c.apiKey
	c.mu.RUnlock()
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return req, nil
}

// escapeModelID escapes each path segment so "vendor/model" stays a two
// segment path as the endpoints route expects.
func escapeModelID(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
