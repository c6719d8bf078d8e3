// Package runner executes the cases of a suite against one model and
// provider, strictly one run at a time.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pario-ai/routebench/pkg/aggregate"
	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/inference"
	"github.com/pario-ai/routebench/pkg/models"
)

// DefaultMaxTokens applies when neither the request nor the case sets one.
const DefaultMaxTokens = 512

const timestampLayout = "2006-01-02T15:04:05.000Z"

// ErrCancelled is returned with the partial result of a cancelled suite run.
var ErrCancelled = fmt.Errorf("suite run %w", apierr.ErrCancelled)

// Executor performs single timed runs. *inference.Client implements it.
type Executor interface {
	Run(ctx context.Context, cfg models.RunConfig, onProgress inference.ProgressFunc) (*models.RunResult, error)
	Cancel()
}

// ProgressFunc is called once per (case, iteration) before the run starts.
type ProgressFunc func(models.SuiteProgress)

// Options tunes a Runner.
type Options struct {
	// DefaultMaxTokens overrides DefaultMaxTokens when positive.
	DefaultMaxTokens int
	// Limiter paces run starts. Nil means no pacing.
	Limiter *rate.Limiter
	// Now overrides the clock in tests.
	Now func() time.Time
}

// SuiteRequest describes one suite run.
type SuiteRequest struct {
	Suite    models.TestSuite
	Model    string
	Provider string
	// Iterations overrides the suite default when set.
	Iterations *int
	// Params override per-case parameters field by field.
	Params *models.TestParams
}

// Runner sequences suite runs.
type Runner struct {
	exec      Executor
	opts      Options
	cancelled atomic.Bool

	mu   sync.Mutex
	stop context.CancelFunc
}

// New creates a Runner.
func New(exec Executor, opts Options) *Runner {
	if opts.DefaultMaxTokens <= 0 {
		opts.DefaultMaxTokens = DefaultMaxTokens
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{exec: exec, opts: opts}
}

// NewLimiter returns a limiter for rps run starts per second, or nil when
// rps is not positive.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Cancel stops the current suite run after aborting its in-flight request.
// A run waiting on the limiter is woken and no further case starts.
func (r *Runner) Cancel() {
	r.cancelled.Store(true)
	r.mu.Lock()
	stop := r.stop
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
	r.exec.Cancel()
}

// Iterations resolves the repeat count: the explicit value, else the suite
// default, else 1, never below 1.
func Iterations(explicit *int, suite models.TestSuite) int {
	n := 1
	switch {
	case explicit != nil:
		n = *explicit
	case suite.Iterations != nil:
		n = *suite.Iterations
	}
	return max(1, n)
}

// RunSuite runs every case for every iteration, case-major. A failed run is
// recorded and the batch continues. On cancellation the partial result is
// returned together with ErrCancelled.
func (r *Runner) RunSuite(ctx context.Context, req SuiteRequest, onProgress ProgressFunc) (*models.SuiteRunResult, error) {
	if onProgress == nil {
		onProgress = func(models.SuiteProgress) {}
	}
	r.cancelled.Store(false)
	ctx, stop := context.WithCancel(ctx)
	r.mu.Lock()
	r.stop = stop
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.stop = nil
		r.mu.Unlock()
		stop()
	}()

	iterations := Iterations(req.Iterations, req.Suite)
	total := len(req.Suite.Cases) * iterations
	out := &models.SuiteRunResult{
		SuiteID:   req.Suite.ID,
		Model:     req.Model,
		Provider:  req.Provider,
		StartedAt: r.stamp(),
		Results:   make([]models.CaseResult, 0, total),
	}

	var runErr error
	step := 0
loop:
	for _, tc := range req.Suite.Cases {
		for it := 1; it <= iterations; it++ {
			if r.stopped(ctx) {
				runErr = ErrCancelled
				break loop
			}
			step++
			onProgress(models.SuiteProgress{
				Step:    step,
				Total:   total,
				Message: fmt.Sprintf("Running %s (iteration %d/%d)", tc.Name, it, iterations),
			})

			if r.opts.Limiter != nil {
				if err := r.opts.Limiter.Wait(ctx); err != nil {
					runErr = ErrCancelled
					break loop
				}
			}
			if r.stopped(ctx) {
				runErr = ErrCancelled
				break loop
			}

			cfg := r.runConfig(req, tc)
			res, err := r.exec.Run(ctx, cfg, nil)
			if err != nil {
				out.Results = append(out.Results, models.CaseResult{
					CaseID: tc.ID, Iteration: it, OK: false, Error: err.Error(),
				})
				if apierr.IsCancelled(err) && r.stopped(ctx) {
					runErr = ErrCancelled
					break loop
				}
				continue
			}
			out.Results = append(out.Results, models.CaseResult{
				CaseID: tc.ID, Iteration: it, OK: true, Result: res,
			})
		}
	}

	out.FinishedAt = r.stamp()
	out.Aggregates = aggregate.Aggregate(out.Results)
	return out, runErr
}

func (r *Runner) stopped(ctx context.Context) bool {
	return r.cancelled.Load() || ctx.Err() != nil
}

// runConfig resolves effective parameters: request override, then case
// default, then the runner default for max tokens.
func (r *Runner) runConfig(req SuiteRequest, tc models.TestCase) models.RunConfig {
	cfg := models.RunConfig{
		Model:     req.Model,
		Provider:  req.Provider,
		Prompt:    tc.Prompt,
		MaxTokens: r.opts.DefaultMaxTokens,
	}
	for _, p := range []*models.TestParams{tc.Params, req.Params} {
		if p == nil {
			continue
		}
		if p.MaxTokens != nil {
			cfg.MaxTokens = *p.MaxTokens
		}
		if p.Temperature != nil {
			cfg.Temperature = p.Temperature
		}
		if p.TopP != nil {
			cfg.TopP = p.TopP
		}
	}
	return cfg
}

func (r *Runner) stamp() string {
	return r.opts.Now().UTC().Format(timestampLayout)
}
