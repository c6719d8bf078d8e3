package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cachepkg "github.com/pario-ai/routebench/pkg/cache/sqlite"
	"github.com/pario-ai/routebench/pkg/catalog"
	"github.com/pario-ai/routebench/pkg/config"
	"github.com/pario-ai/routebench/pkg/history"
	"github.com/pario-ai/routebench/pkg/inference"
	"github.com/pario-ai/routebench/pkg/recommend"
	"github.com/pario-ai/routebench/pkg/router"
	"github.com/pario-ai/routebench/pkg/runner"
	"github.com/pario-ai/routebench/pkg/suites"
)

var errNoAPIKey = errors.New("no API key: set api.api_key in the config or OPENROUTER_API_KEY")

// app holds the collaborators shared by subcommands.
type app struct {
	cfg     *config.Config
	catalog *catalog.Client
	client  *inference.Client
	cache   *cachepkg.Cache
	history history.Store
	suites  *suites.Store
	router  *router.Router
}

// openApp loads configuration and wires clients and stores. The returned
// cleanup closes databases.
func openApp(configPath string) (*app, func(), error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg:    cfg,
		suites: suites.NewStore(cfg.Suites.CustomFile),
		router: router.New(cfg),
	}

	if cfg.CatalogCache.Enabled {
		a.cache, err = cachepkg.New(cfg.DBPath, cfg.CatalogCache.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("init cache: %w", err)
		}
	}

	a.history, err = history.Open(cfg.DBPath, cfg.History.Enabled, cfg.History.MaxItems)
	if err != nil {
		a.closeCache()
		return nil, nil, fmt.Errorf("init history: %w", err)
	}

	catOpts := catalog.Options{
		BaseURL:         cfg.API.BaseURL,
		APIKey:          cfg.API.APIKey,
		UserAgent:       cfg.API.UserAgent,
		MetadataTimeout: cfg.Timeouts.Metadata,
		ValidateTimeout: cfg.Timeouts.Validate,
	}
	if a.cache != nil {
		catOpts.Cache = a.cache
	}
	a.catalog = catalog.New(catOpts)

	a.client = inference.New(inference.Options{
		BaseURL:   cfg.API.BaseURL,
		APIKey:    cfg.API.APIKey,
		Referer:   cfg.API.Referer,
		Title:     cfg.API.Title,
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.Timeouts.Run,
		Pricing:   a.catalog,
	})

	cleanup := func() {
		_ = a.history.Close()
		a.closeCache()
	}
	return a, cleanup, nil
}

func (a *app) closeCache() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

func (a *app) requireKey() error {
	if a.cfg.API.APIKey == "" {
		return errNoAPIKey
	}
	return nil
}

func (a *app) runnerOptions() runner.Options {
	return runner.Options{
		DefaultMaxTokens: a.cfg.Runner.DefaultMaxTokens,
		Limiter:          runner.NewLimiter(a.cfg.Runner.RequestsPerSecond),
	}
}

func (a *app) recommendOptions() recommend.Options {
	return recommend.Options{
		MaxCases:  a.cfg.Recommend.MaxCases,
		MaxTokens: a.cfg.Recommend.MaxTokens,
	}
}

// loadPricing fills the catalog's in-memory model list so runs can price
// from it. Failure only means the fallback cost estimate applies.
func (a *app) loadPricing(ctx context.Context) {
	if _, err := a.catalog.ListModels(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: model pricing unavailable (%v); using estimated cost\n", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
