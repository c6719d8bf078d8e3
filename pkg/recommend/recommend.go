// Package recommend runs abbreviated benchmarks across candidate models and
// ranks them on speed, latency and cost.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/pario-ai/routebench/pkg/aggregate"
	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/models"
	"github.com/pario-ai/routebench/pkg/runner"
)

const (
	// DefaultMaxCases is how many leading suite cases each candidate runs.
	DefaultMaxCases = 3
	// DefaultMaxTokens applies to a mini-case without its own max_tokens.
	DefaultMaxTokens = 256
)

// ErrCancelled is returned when a recommendation run is cancelled.
var ErrCancelled = fmt.Errorf("recommendation %w", apierr.ErrCancelled)

// ProgressFunc receives step progress and the final cancelled signal.
type ProgressFunc func(models.WizardProgress)

// Options tunes a Recommender.
type Options struct {
	MaxCases  int
	MaxTokens int
}

// Request describes one recommendation run.
type Request struct {
	ModelIDs    []string
	Suite       models.TestSuite
	Provider    string
	Constraints models.Constraints
}

// Recommender benchmarks candidates sequentially and ranks them.
type Recommender struct {
	exec      runner.Executor
	opts      Options
	cancelled atomic.Bool
}

// New creates a Recommender.
func New(exec runner.Executor, opts Options) *Recommender {
	if opts.MaxCases <= 0 {
		opts.MaxCases = DefaultMaxCases
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Recommender{exec: exec, opts: opts}
}

// Cancel abandons the current recommendation run.
func (r *Recommender) Cancel() {
	r.cancelled.Store(true)
	r.exec.Cancel()
}

// Recommend runs the first cases of the suite once per candidate model,
// then filters and ranks the candidates.
func (r *Recommender) Recommend(ctx context.Context, req Request, onProgress ProgressFunc) (*models.Recommendation, error) {
	if onProgress == nil {
		onProgress = func(models.WizardProgress) {}
	}
	if len(req.ModelIDs) == 0 {
		return nil, errors.New("no models to compare")
	}
	if len(req.Suite.Cases) == 0 {
		return nil, fmt.Errorf("suite %q has no cases", req.Suite.ID)
	}
	r.cancelled.Store(false)

	provider := req.Provider
	if provider == "" {
		provider = models.ProviderAuto
	}
	mini := req.Suite.Cases[:min(r.opts.MaxCases, len(req.Suite.Cases))]
	total := len(req.ModelIDs) * len(mini)
	step := 0

	cancelled := func() (*models.Recommendation, error) {
		onProgress(models.WizardProgress{Step: step, Total: total, Message: "Recommendation cancelled", Cancelled: true})
		return nil, ErrCancelled
	}

	cands := make([]models.Candidate, 0, len(req.ModelIDs))
	for _, modelID := range req.ModelIDs {
		results := make([]models.CaseResult, 0, len(mini))
		for _, tc := range mini {
			if r.cancelled.Load() || ctx.Err() != nil {
				return cancelled()
			}
			step++
			onProgress(models.WizardProgress{
				Step:    step,
				Total:   total,
				Message: fmt.Sprintf("Testing %s • %s", modelID, tc.Name),
			})

			res, err := r.exec.Run(ctx, r.runConfig(modelID, provider, tc), nil)
			if err != nil {
				results = append(results, models.CaseResult{CaseID: tc.ID, Iteration: 1, Error: err.Error()})
				continue
			}
			results = append(results, models.CaseResult{CaseID: tc.ID, Iteration: 1, OK: true, Result: res})
		}

		agg := aggregate.Aggregate(results)
		cands = append(cands, models.Candidate{
			ModelID:    modelID,
			Provider:   provider,
			Aggregates: agg,
			CostPer1k:  CostPer1k(agg, len(mini)),
		})
	}

	if r.cancelled.Load() {
		return cancelled()
	}

	weights := models.DefaultWeights
	if req.Constraints.Weights != nil {
		weights = *req.Constraints.Weights
	}
	kept, relaxed := Filter(cands, req.Constraints)
	return &models.Recommendation{
		SuiteID:            req.Suite.ID,
		Provider:           provider,
		Candidates:         Score(kept, weights),
		ConstraintsRelaxed: relaxed,
	}, nil
}

func (r *Recommender) runConfig(modelID, provider string, tc models.TestCase) models.RunConfig {
	cfg := models.RunConfig{
		Model:     modelID,
		Provider:  provider,
		Prompt:    tc.Prompt,
		MaxTokens: r.opts.MaxTokens,
	}
	if p := tc.Params; p != nil {
		if p.MaxTokens != nil {
			cfg.MaxTokens = *p.MaxTokens
		}
		cfg.Temperature = p.Temperature
		cfg.TopP = p.TopP
	}
	return cfg
}
