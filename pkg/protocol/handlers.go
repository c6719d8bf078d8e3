package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/export"
	"github.com/pario-ai/routebench/pkg/models"
	"github.com/pario-ai/routebench/pkg/recommend"
	"github.com/pario-ai/routebench/pkg/runner"
	"github.com/pario-ai/routebench/pkg/suites"
)

const (
	msgNoKey = "Please set your API key first"
	msgBusy  = "Another run is in progress"
)

func (s *Server) apiKey() (string, error) {
	key, err := s.opts.Credentials.Get()
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	return key, nil
}

// applyKey pushes the credential to both clients. The catalog drops its
// cached model list on a key change.
func (s *Server) applyKey(key string) {
	s.opts.Client.SetAPIKey(key)
	s.opts.Catalog.SetAPIKey(key)
}

func (s *Server) handleSaveAPIKey(ctx context.Context, c *SaveAPIKey) {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		s.emit(APIKeySavedEvent{Success: false})
		s.emit(ErrorEvent{Message: "API key must not be empty"})
		return
	}
	if err := s.opts.Credentials.Set(key); err != nil {
		s.emit(APIKeySavedEvent{Success: false})
		s.emit(ErrorEvent{Message: fmt.Sprintf("save api key: %v", err)})
		return
	}
	s.applyKey(key)
	s.emit(APIKeySavedEvent{Success: true})
	s.background(func() {
		s.sendModels(ctx)
		s.sendAllProviders(ctx)
	})
}

func (s *Server) handleGetAPIKey(ctx context.Context) {
	key, err := s.apiKey()
	if err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.emit(APIKeyEvent{HasKey: key != "", Masked: Mask(key)})
	if key == "" {
		return
	}
	s.applyKey(key)
	s.background(func() {
		s.sendModels(ctx)
		s.sendAllProviders(ctx)
	})
}

func (s *Server) handleClearAPIKey() {
	if err := s.opts.Credentials.Clear(); err != nil {
		s.emit(ErrorEvent{Message: fmt.Sprintf("clear api key: %v", err)})
		return
	}
	s.applyKey("")
	s.emit(APIKeyClearedEvent{})
	s.emit(APIKeyEvent{HasKey: false, Masked: ""})
}

func (s *Server) handleRunTest(ctx context.Context, c *RunTest) {
	key, err := s.apiKey()
	if err != nil || key == "" {
		s.emit(TestErrorEvent{Error: msgNoKey})
		return
	}
	cfg := c.Config
	target, err := s.opts.Router.Resolve(cfg.Model, cfg.Provider)
	if err != nil {
		s.emit(TestErrorEvent{Error: err.Error()})
		return
	}
	cfg.Model, cfg.Provider = target.Model, target.Provider
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = s.opts.Runner.DefaultMaxTokens
	}

	s.startJob(ctx, func() { s.emit(TestErrorEvent{Error: msgBusy}) }, func(ctx context.Context) Event {
		s.emit(TestStartedEvent{})
		res, err := s.opts.Client.Run(ctx, cfg, func(p models.Progress) {
			s.emit(TestProgressEvent{Progress: p})
		})
		if err != nil {
			if apierr.IsCancelled(err) {
				return TestCancelledEvent{}
			}
			return TestErrorEvent{Error: err.Error()}
		}
		if _, err := s.opts.History.Record(ctx, *res); err != nil {
			log.Printf("protocol: record history: %v", err)
		}
		return TestCompletedEvent{Result: res}
	})
}

func (s *Server) sendHistory(ctx context.Context) {
	entries, err := s.opts.History.List(ctx, s.opts.HistoryLimit)
	if err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.emit(HistoryEvent{History: historyResults(entries)})
}

func (s *Server) handleClearHistory(ctx context.Context) {
	if err := s.opts.History.Clear(ctx); err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.emit(HistoryClearedEvent{})
}

func (s *Server) handleExportResults(c *ExportResults) {
	var buf bytes.Buffer
	if err := export.WriteResultsJSON(&buf, c.Results); err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.emit(ExportReadyEvent{Kind: "json", FileName: export.ResultsFileName, Content: buf.String()})
}

func (s *Server) sendSuites() {
	all, err := s.opts.Suites.List()
	if err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.emit(SuitesEvent{Suites: all})
}

func (s *Server) handleRunSuite(ctx context.Context, c *RunSuite) {
	p := c.Payload
	key, err := s.apiKey()
	if err != nil || key == "" {
		s.emit(SuiteErrorEvent{Error: msgNoKey})
		return
	}
	suite, err := s.opts.Suites.Get(p.SuiteID)
	if errors.Is(err, suites.ErrUnknownSuite) {
		s.emit(SuiteErrorEvent{Error: "Suite not found: " + p.SuiteID})
		return
	}
	if err != nil {
		s.emit(SuiteErrorEvent{Error: err.Error()})
		return
	}
	target, err := s.opts.Router.Resolve(p.Model, p.Provider)
	if err != nil {
		s.emit(SuiteErrorEvent{Error: err.Error()})
		return
	}

	req := runner.SuiteRequest{
		Suite:      suite,
		Model:      target.Model,
		Provider:   target.Provider,
		Iterations: p.Iterations,
		Params:     p.Params,
	}
	s.startJob(ctx, func() { s.emit(SuiteErrorEvent{Error: msgBusy}) }, func(ctx context.Context) Event {
		res, err := s.runner.RunSuite(ctx, req, func(sp models.SuiteProgress) {
			s.emit(SuiteProgressEvent{Progress: SuiteProgress{SuiteID: suite.ID, SuiteProgress: sp}})
		})
		cancelled := errors.Is(err, runner.ErrCancelled)
		if err != nil && !cancelled {
			return SuiteErrorEvent{Error: err.Error()}
		}
		if !cancelled {
			if _, err := s.opts.History.RecordSuite(ctx, *res); err != nil {
				log.Printf("protocol: record suite history: %v", err)
			}
		}
		return SuiteCompletedEvent{Result: res, Cancelled: cancelled}
	})
}

func (s *Server) handleExportDocument(c *ExportDocument) {
	now := s.opts.Now()
	switch strings.ToLower(c.Format) {
	case "", "markdown", "md":
		s.emit(DocumentReadyEvent{
			Format:   "markdown",
			FileName: export.ReportFileName,
			Content:  export.SuiteMarkdown(c.Payload, now),
		})
	case "html":
		page, err := export.SuiteHTML(c.Payload, now)
		if err != nil {
			s.emit(ErrorEvent{Message: err.Error()})
			return
		}
		s.emit(DocumentReadyEvent{Format: "html", FileName: export.HTMLFileName, Content: string(page)})
	default:
		s.emit(ErrorEvent{Message: fmt.Sprintf("unsupported document format: %s", c.Format)})
	}
}

func (s *Server) handleExportSuiteCSV(c *ExportSuiteCSV) {
	var buf bytes.Buffer
	if err := export.WriteSuiteCSV(&buf, c.Payload); err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.emit(ExportReadyEvent{Kind: "csv", FileName: export.CSVFileName, Content: buf.String()})
}

func (s *Server) handleRecommend(ctx context.Context, c *RecommendModels) {
	p := c.Payload
	key, err := s.apiKey()
	if err != nil || key == "" {
		s.emit(WizardErrorEvent{Error: msgNoKey})
		return
	}
	all, err := s.opts.Suites.List()
	if err != nil {
		s.emit(WizardErrorEvent{Error: err.Error()})
		return
	}
	suiteID := p.SuiteID
	if suiteID == "" {
		suiteID = s.opts.DefaultSuite
	}
	suite, ok := suites.Find(all, suiteID)
	if !ok {
		if len(all) == 0 {
			s.emit(WizardErrorEvent{Error: "No suites available for recommendation"})
			return
		}
		suite = all[0]
	}
	modelIDs, err := s.opts.Router.ResolveAll(p.ModelIDs, p.Provider)
	if err != nil {
		s.emit(WizardErrorEvent{Error: err.Error()})
		return
	}
	constraints := p.Constraints
	if constraints.Weights == nil && s.opts.Weights != nil {
		w := *s.opts.Weights
		constraints.Weights = &w
	}

	req := recommend.Request{
		ModelIDs:    modelIDs,
		Suite:       suite,
		Provider:    p.Provider,
		Constraints: constraints,
	}
	s.startJob(ctx, func() { s.emit(WizardErrorEvent{Error: msgBusy}) }, func(ctx context.Context) Event {
		rec, err := s.recommender.Recommend(ctx, req, func(wp models.WizardProgress) {
			s.emit(WizardProgressEvent{Progress: wp})
		})
		if errors.Is(err, recommend.ErrCancelled) {
			return nil
		}
		if err != nil {
			return WizardErrorEvent{Error: err.Error()}
		}
		return WizardRecommendationEvent{Payload: rec}
	})
}

func (s *Server) sendModels(ctx context.Context) {
	s.emit(ModelsEvent{Models: s.opts.Catalog.ModelsOrDefault(ctx)})
}

func (s *Server) sendAllProviders(ctx context.Context) {
	s.emit(ProvidersEvent{Scope: "global", Providers: s.opts.Catalog.ProvidersOrDefault(ctx)})
}

func (s *Server) sendProvidersForModel(ctx context.Context, modelID string) {
	if modelID == "" {
		s.sendAllProviders(ctx)
		return
	}
	s.emit(ProvidersEvent{
		Scope:     "model",
		ModelID:   modelID,
		Providers: s.opts.Catalog.ProvidersForModel(ctx, modelID),
	})
}

func (s *Server) handleSaveSuite(c *SaveCustomSuite) {
	if err := s.opts.Suites.Upsert(c.Suite); err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.sendSuites()
}

func (s *Server) handleDeleteSuite(c *DeleteCustomSuite) {
	if err := s.opts.Suites.Delete(c.SuiteID); err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.sendSuites()
}

func (s *Server) handleImportSuites(c *ImportSuitesJSON) {
	data := []byte(c.Data)
	// Hosts that read the file as text send the document as a JSON string.
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		data = []byte(text)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.emit(ErrorEvent{Message: "No valid suites to import"})
		return
	}

	res, err := s.opts.Suites.ImportJSON(data)
	if errors.Is(err, suites.ErrNoValidSuites) {
		s.emit(ErrorEvent{Message: "No valid suites to import"})
		return
	}
	if err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	ev := SuitesImportedEvent{Imported: res.Imported}
	for _, e := range res.Skipped {
		ev.Skipped = append(ev.Skipped, e.Error())
	}
	s.emit(ev)
	s.sendSuites()
}

func (s *Server) handleExportSuites() {
	data, err := s.opts.Suites.ExportJSON()
	if err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return
	}
	s.emit(ExportReadyEvent{Kind: "suites", FileName: suites.ExportFileName, Content: string(data)})
}
