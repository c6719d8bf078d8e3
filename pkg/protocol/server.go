package protocol

import (
	"bufio"
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pario-ai/routebench/pkg/config"
	"github.com/pario-ai/routebench/pkg/history"
	"github.com/pario-ai/routebench/pkg/models"
	"github.com/pario-ai/routebench/pkg/recommend"
	"github.com/pario-ai/routebench/pkg/router"
	"github.com/pario-ai/routebench/pkg/runner"
	"github.com/pario-ai/routebench/pkg/suites"
)

// RunClient performs single timed runs with the current credential.
type RunClient interface {
	runner.Executor
	SetAPIKey(key string)
}

// Catalog provides model and provider listings that never fail.
type Catalog interface {
	SetAPIKey(key string)
	ModelsOrDefault(ctx context.Context) []models.ModelInfo
	ProvidersOrDefault(ctx context.Context) []string
	ProvidersForModel(ctx context.Context, modelID string) []string
}

// Options wires a Server to its collaborators.
type Options struct {
	Client  RunClient
	Catalog Catalog
	Suites  *suites.Store
	// History defaults to history.Nop.
	History      history.Store
	HistoryLimit int
	// Credentials defaults to empty in-memory credentials.
	Credentials Credentials
	// Router resolves model aliases. Nil accepts only vendor/model ids.
	Router       *router.Router
	Runner       runner.Options
	Recommend    recommend.Options
	DefaultSuite string
	// Weights applies when a recommendation request carries none.
	Weights *models.Weights
	Now     func() time.Time
}

// Server dispatches host commands and streams events back.
type Server struct {
	opts        Options
	runner      *runner.Runner
	recommender *recommend.Recommender

	mu  sync.Mutex
	out io.Writer

	busy atomic.Bool
	wg   sync.WaitGroup
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.History == nil {
		opts.History = history.Nop{}
	}
	if opts.Credentials == nil {
		opts.Credentials = NewMemoryCredentials("")
	}
	if opts.Router == nil {
		opts.Router = router.New(&config.Config{})
	}
	if opts.DefaultSuite == "" {
		opts.DefaultSuite = suites.DefaultSuiteID
	}
	if opts.Runner.DefaultMaxTokens <= 0 {
		opts.Runner.DefaultMaxTokens = runner.DefaultMaxTokens
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Runner.Now == nil {
		opts.Runner.Now = opts.Now
	}
	return &Server{
		opts:        opts,
		runner:      runner.New(opts.Client, opts.Runner),
		recommender: recommend.New(opts.Client, opts.Recommend),
	}
}

// Run reads commands from r line-by-line and writes events to w. It blocks
// until r is closed or ctx is cancelled, then waits for in-flight work.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.mu.Lock()
	s.out = w
	s.mu.Unlock()

	jobCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		cmd, err := DecodeCommand(line)
		if err != nil {
			s.emit(ErrorEvent{Message: err.Error()})
			continue
		}
		s.dispatch(jobCtx, cmd)
	}
	s.wg.Wait()
	return scanner.Err()
}

// NotifySuites pushes a suites event, e.g. after the custom suite file
// changed on disk. It is a no-op before Run starts.
func (s *Server) NotifySuites(all []models.TestSuite) {
	s.emit(SuitesEvent{Suites: all})
}

func (s *Server) dispatch(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case *SaveAPIKey:
		s.handleSaveAPIKey(ctx, c)
	case *GetAPIKey:
		s.handleGetAPIKey(ctx)
	case *ClearAPIKey:
		s.handleClearAPIKey()
	case *RunTest:
		s.handleRunTest(ctx, c)
	case *CancelTest:
		s.runner.Cancel()
	case *GetHistory:
		s.sendHistory(ctx)
	case *ClearHistory:
		s.handleClearHistory(ctx)
	case *ExportResults:
		s.handleExportResults(c)
	case *GetSuites:
		s.sendSuites()
	case *RunSuite:
		s.handleRunSuite(ctx, c)
	case *ExportDocument:
		s.handleExportDocument(c)
	case *ExportSuiteCSV:
		s.handleExportSuiteCSV(c)
	case *RecommendModels:
		s.handleRecommend(ctx, c)
	case *CancelRecommendation:
		s.recommender.Cancel()
	case *GetModels:
		s.background(func() { s.sendModels(ctx) })
	case *GetProvidersForModel:
		s.background(func() { s.sendProvidersForModel(ctx, c.ModelID) })
	case *GetAllProviders:
		s.background(func() { s.sendAllProviders(ctx) })
	case *SaveCustomSuite:
		s.handleSaveSuite(c)
	case *DeleteCustomSuite:
		s.handleDeleteSuite(c)
	case *ImportSuitesJSON:
		s.handleImportSuites(c)
	case *ExportSuitesJSON:
		s.handleExportSuites()
	}
}

// startJob runs fn on its own goroutine unless another run holds the client.
// The slot is released before fn's final event goes out, so a host may start
// the next run as soon as it sees that event. A nil final event emits nothing.
func (s *Server) startJob(ctx context.Context, onBusy func(), fn func(ctx context.Context) Event) {
	if !s.busy.CompareAndSwap(false, true) {
		onBusy()
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ev := fn(ctx)
		s.busy.Store(false)
		if ev != nil {
			s.emit(ev)
		}
	}()
}

func (s *Server) background(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Server) emit(ev Event) {
	data, err := EncodeEvent(ev)
	if err != nil {
		log.Printf("protocol: %v", err)
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return
	}
	if _, err := s.out.Write(data); err != nil {
		log.Printf("protocol: write error: %v", err)
	}
}
