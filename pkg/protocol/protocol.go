// Package protocol implements the newline-delimited JSON command/event
// protocol spoken between routebench and a host UI.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/pario-ai/routebench/pkg/history"
	"github.com/pario-ai/routebench/pkg/models"
)

// Command is a message from the host. The set is closed.
type Command interface {
	commandName() string
}

// Commands.

type SaveAPIKey struct {
	APIKey string `json:"apiKey"`
}

type GetAPIKey struct{}

type ClearAPIKey struct{}

type RunTest struct {
	Config models.RunConfig `json:"config"`
}

type CancelTest struct{}

type GetHistory struct{}

type ClearHistory struct{}

type ExportResults struct {
	Results []models.RunResult `json:"results"`
}

type GetSuites struct{}

// SuitePayload selects a suite and the target of a suite run.
type SuitePayload struct {
	SuiteID    string             `json:"suiteId"`
	Model      string             `json:"model"`
	Provider   string             `json:"provider"`
	Iterations *int               `json:"iterations,omitempty"`
	Params     *models.TestParams `json:"params,omitempty"`
}

type RunSuite struct {
	Payload SuitePayload `json:"payload"`
}

// ExportDocument renders a report. Format is "markdown" (default) or "html".
type ExportDocument struct {
	Payload models.SuiteRunResult `json:"payload"`
	Format  string                `json:"format,omitempty"`
}

type ExportSuiteCSV struct {
	Payload models.SuiteRunResult `json:"payload"`
}

// RecommendPayload describes a recommendation request.
type RecommendPayload struct {
	ModelIDs    []string           `json:"modelIds"`
	SuiteID     string             `json:"suiteId,omitempty"`
	Provider    string             `json:"provider,omitempty"`
	Constraints models.Constraints `json:"constraints"`
}

type RecommendModels struct {
	Payload RecommendPayload `json:"payload"`
}

type CancelRecommendation struct{}

type GetModels struct{}

type GetProvidersForModel struct {
	ModelID string `json:"modelId"`
}

type GetAllProviders struct{}

type SaveCustomSuite struct {
	Suite models.TestSuite `json:"suite"`
}

type DeleteCustomSuite struct {
	SuiteID string `json:"suiteId"`
}

// ImportSuitesJSON carries the document to import inline.
type ImportSuitesJSON struct {
	Data json.RawMessage `json:"data"`
}

type ExportSuitesJSON struct{}

func (SaveAPIKey) commandName() string           { return "saveApiKey" }
func (GetAPIKey) commandName() string            { return "getApiKey" }
func (ClearAPIKey) commandName() string          { return "clearApiKey" }
func (RunTest) commandName() string              { return "runTest" }
func (CancelTest) commandName() string           { return "cancelTest" }
func (GetHistory) commandName() string           { return "getHistory" }
func (ClearHistory) commandName() string         { return "clearHistory" }
func (ExportResults) commandName() string        { return "exportResults" }
func (GetSuites) commandName() string            { return "getSuites" }
func (RunSuite) commandName() string             { return "runSuite" }
func (ExportDocument) commandName() string       { return "exportDocument" }
func (ExportSuiteCSV) commandName() string       { return "exportSuiteCsv" }
func (RecommendModels) commandName() string      { return "recommendModels" }
func (CancelRecommendation) commandName() string { return "cancelRecommendation" }
func (GetModels) commandName() string            { return "getModels" }
func (GetProvidersForModel) commandName() string { return "getProvidersForModel" }
func (GetAllProviders) commandName() string      { return "getAllProviders" }
func (SaveCustomSuite) commandName() string      { return "saveCustomSuite" }
func (DeleteCustomSuite) commandName() string    { return "deleteCustomSuite" }
func (ImportSuitesJSON) commandName() string     { return "importSuitesJson" }
func (ExportSuitesJSON) commandName() string     { return "exportSuitesJson" }

// registry maps the "command" tag to a constructor for its payload.
var registry = map[string]func() Command{
	"saveApiKey":           func() Command { return &SaveAPIKey{} },
	"getApiKey":            func() Command { return &GetAPIKey{} },
	"clearApiKey":          func() Command { return &ClearAPIKey{} },
	"runTest":              func() Command { return &RunTest{} },
	"cancelTest":           func() Command { return &CancelTest{} },
	"getHistory":           func() Command { return &GetHistory{} },
	"clearHistory":         func() Command { return &ClearHistory{} },
	"exportResults":        func() Command { return &ExportResults{} },
	"getSuites":            func() Command { return &GetSuites{} },
	"runSuite":             func() Command { return &RunSuite{} },
	"exportDocument":       func() Command { return &ExportDocument{} },
	"exportSuiteCsv":       func() Command { return &ExportSuiteCSV{} },
	"recommendModels":      func() Command { return &RecommendModels{} },
	"cancelRecommendation": func() Command { return &CancelRecommendation{} },
	"getModels":            func() Command { return &GetModels{} },
	"getProvidersForModel": func() Command { return &GetProvidersForModel{} },
	"getAllProviders":      func() Command { return &GetAllProviders{} },
	"saveCustomSuite":      func() Command { return &SaveCustomSuite{} },
	"deleteCustomSuite":    func() Command { return &DeleteCustomSuite{} },
	"importSuitesJson":     func() Command { return &ImportSuitesJSON{} },
	"exportSuitesJson":     func() Command { return &ExportSuitesJSON{} },
}

var (
	// ErrMissingCommand is returned for a message without a "command" field.
	ErrMissingCommand = errors.New("missing command")
	// ErrUnknownCommand is returned for an unrecognised "command" value.
	ErrUnknownCommand = errors.New("unknown command")
)

// DecodeCommand parses one protocol line into its Command.
func DecodeCommand(line []byte) (Command, error) {
	if !gjson.ValidBytes(line) {
		return nil, errors.New("parse error")
	}
	tag := gjson.GetBytes(line, "command")
	if tag.Type != gjson.String || tag.Str == "" {
		return nil, ErrMissingCommand
	}
	newCmd, ok := registry[tag.Str]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, tag.Str)
	}
	cmd := newCmd()
	if err := json.Unmarshal(line, cmd); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag.Str, err)
	}
	return cmd, nil
}

// Event is a message to the host.
type Event interface {
	eventName() string
}

// Events.

type APIKeyEvent struct {
	HasKey bool   `json:"hasKey"`
	Masked string `json:"masked"`
}

type APIKeySavedEvent struct {
	Success bool `json:"success"`
}

type APIKeyClearedEvent struct{}

type TestStartedEvent struct{}

type TestProgressEvent struct {
	Progress models.Progress `json:"progress"`
}

type TestCompletedEvent struct {
	Result *models.RunResult `json:"result"`
}

type TestErrorEvent struct {
	Error string `json:"error"`
}

// TestCancelledEvent replaces TestErrorEvent when a run ends because of a cancel.
type TestCancelledEvent struct{}

type HistoryEvent struct {
	History []models.RunResult `json:"history"`
}

type HistoryClearedEvent struct{}

// ExportReadyEvent carries exported file contents for the host to save.
type ExportReadyEvent struct {
	Kind     string `json:"kind"`
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

type ModelsEvent struct {
	Models []models.ModelInfo `json:"models"`
}

// ProvidersEvent lists providers globally or for one model.
type ProvidersEvent struct {
	Scope     string   `json:"scope"`
	ModelID   string   `json:"modelId,omitempty"`
	Providers []string `json:"providers"`
}

type SuitesEvent struct {
	Suites []models.TestSuite `json:"suites"`
}

// SuiteProgress is models.SuiteProgress tagged with its suite.
type SuiteProgress struct {
	SuiteID string `json:"suiteId"`
	models.SuiteProgress
}

type SuiteProgressEvent struct {
	Progress SuiteProgress `json:"progress"`
}

// SuiteCompletedEvent carries the run result. Cancelled runs carry the
// partial result with Cancelled set.
type SuiteCompletedEvent struct {
	Result    *models.SuiteRunResult `json:"result"`
	Cancelled bool                   `json:"cancelled,omitempty"`
}

type SuiteErrorEvent struct {
	Error string `json:"error"`
}

// DocumentReadyEvent carries a rendered report.
type DocumentReadyEvent struct {
	Format   string `json:"format"`
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

type WizardProgressEvent struct {
	Progress models.WizardProgress `json:"progress"`
}

type WizardRecommendationEvent struct {
	Payload *models.Recommendation `json:"payload"`
}

type WizardErrorEvent struct {
	Error string `json:"error"`
}

// SuitesImportedEvent reports the outcome of an import.
type SuitesImportedEvent struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

// ErrorEvent reports a failure not tied to a specific run.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (APIKeyEvent) eventName() string               { return "apiKey" }
func (APIKeySavedEvent) eventName() string          { return "apiKeySaved" }
func (APIKeyClearedEvent) eventName() string        { return "apiKeyCleared" }
func (TestStartedEvent) eventName() string          { return "testStarted" }
func (TestProgressEvent) eventName() string         { return "testProgress" }
func (TestCompletedEvent) eventName() string        { return "testCompleted" }
func (TestErrorEvent) eventName() string            { return "testError" }
func (TestCancelledEvent) eventName() string        { return "testCancelled" }
func (HistoryEvent) eventName() string              { return "history" }
func (HistoryClearedEvent) eventName() string       { return "historyCleared" }
func (ExportReadyEvent) eventName() string          { return "exportReady" }
func (ModelsEvent) eventName() string               { return "models" }
func (ProvidersEvent) eventName() string            { return "providers" }
func (SuitesEvent) eventName() string               { return "suites" }
func (SuiteProgressEvent) eventName() string        { return "suiteProgress" }
func (SuiteCompletedEvent) eventName() string       { return "suiteCompleted" }
func (SuiteErrorEvent) eventName() string           { return "suiteError" }
func (DocumentReadyEvent) eventName() string        { return "documentReady" }
func (WizardProgressEvent) eventName() string       { return "wizardProgress" }
func (WizardRecommendationEvent) eventName() string { return "wizardRecommendation" }
func (WizardErrorEvent) eventName() string          { return "wizardError" }
func (SuitesImportedEvent) eventName() string       { return "suitesImported" }
func (ErrorEvent) eventName() string                { return "error" }

// EncodeEvent serialises ev with its "command" tag.
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.eventName(), err)
	}
	return sjson.SetBytes(data, "command", ev.eventName())
}

func historyResults(entries []history.Entry) []models.RunResult {
	out := make([]models.RunResult, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Result)
	}
	return out
}
