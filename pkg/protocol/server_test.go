package protocol

import (
	"bufio"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/pario-ai/routebench/pkg/apierr"
	"github.com/pario-ai/routebench/pkg/config"
	"github.com/pario-ai/routebench/pkg/history"
	"github.com/pario-ai/routebench/pkg/inference"
	"github.com/pario-ai/routebench/pkg/models"
	"github.com/pario-ai/routebench/pkg/router"
	"github.com/pario-ai/routebench/pkg/suites"
)

// fakeClient implements RunClient.
type fakeClient struct {
	mu      sync.Mutex
	keys    []string
	configs []models.RunConfig
	block   bool
	fail    map[string]error
	cancel  chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{fail: map[string]error{}, cancel: make(chan struct{}, 1)}
}

func (f *fakeClient) SetAPIKey(key string) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
}

func (f *fakeClient) Cancel() {
	select {
	case f.cancel <- struct{}{}:
	default:
	}
}

func (f *fakeClient) Run(ctx context.Context, cfg models.RunConfig, onProgress inference.ProgressFunc) (*models.RunResult, error) {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	block, err := f.block, f.fail[cfg.Model]
	f.mu.Unlock()

	if onProgress != nil {
		onProgress(models.Progress{Percent: 10, Message: "Connecting..."})
	}
	if block {
		select {
		case <-f.cancel:
		case <-ctx.Done():
		}
		return nil, apierr.Cancelled()
	}
	if err != nil {
		return nil, err
	}
	tps := 10.0
	if strings.HasPrefix(cfg.Model, "fast/") {
		tps = 100
	}
	return &models.RunResult{
		Model: cfg.Model, Provider: cfg.Provider, Prompt: cfg.Prompt, Output: "ok",
		CompletionTokens: 10, TotalTime: 1, TimeToFirstToken: 0.2, TokensPerSecond: tps, Cost: 0.001,
	}, nil
}

func (f *fakeClient) lastKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.keys) == 0 {
		return ""
	}
	return f.keys[len(f.keys)-1]
}

func (f *fakeClient) lastConfig() models.RunConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[len(f.configs)-1]
}

// fakeCatalog implements Catalog.
type fakeCatalog struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeCatalog) SetAPIKey(key string) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
}

func (f *fakeCatalog) ModelsOrDefault(context.Context) []models.ModelInfo {
	return []models.ModelInfo{{ID: "openai/gpt-4o-mini", Name: "GPT-4o mini", Provider: "OpenAI"}}
}

func (f *fakeCatalog) ProvidersOrDefault(context.Context) []string {
	return []string{"auto", "OpenAI", "Groq"}
}

func (f *fakeCatalog) ProvidersForModel(_ context.Context, modelID string) []string {
	return []string{"auto", "Provider for " + modelID}
}

type harness struct {
	t      *testing.T
	in     *io.PipeWriter
	events chan []byte
	done   chan error
}

func startServer(t *testing.T, srv *Server) *harness {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	h := &harness{t: t, in: inW, events: make(chan []byte, 256), done: make(chan error, 1)}

	go func() {
		err := srv.Run(context.Background(), inR, outW)
		outW.Close()
		h.done <- err
	}()
	go func() {
		sc := bufio.NewScanner(outR)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			h.events <- append([]byte(nil), sc.Bytes()...)
		}
		close(h.events)
	}()

	t.Cleanup(func() {
		inW.Close()
		select {
		case err := <-h.done:
			if err != nil {
				t.Errorf("server: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return h
}

func (h *harness) send(line string) {
	h.t.Helper()
	if _, err := io.WriteString(h.in, line+"\n"); err != nil {
		h.t.Fatal(err)
	}
}

// waitFor returns the next event named name, skipping others.
func (h *harness) waitFor(name string) gjson.Result {
	h.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-h.events:
			if !ok {
				h.t.Fatalf("event stream closed while waiting for %s", name)
			}
			if gjson.GetBytes(ev, "command").String() == name {
				return gjson.ParseBytes(ev)
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s", name)
		}
	}
}

// collectUntil gathers events until one named last arrives.
func (h *harness) collectUntil(last string) []gjson.Result {
	h.t.Helper()
	var out []gjson.Result
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-h.events:
			if !ok {
				h.t.Fatalf("event stream closed while waiting for %s", last)
			}
			r := gjson.ParseBytes(ev)
			out = append(out, r)
			if r.Get("command").String() == last {
				return out
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s", last)
		}
	}
}

func names(events []gjson.Result) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Get("command").String()
	}
	return out
}

type testEnv struct {
	client  *fakeClient
	catalog *fakeCatalog
	store   *suites.Store
	history *history.SQLiteStore
	opts    Options
}

func newTestEnv(t *testing.T, key string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	hist, err := history.New(filepath.Join(dir, "history.db"), 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	cfg := &config.Config{Aliases: []config.AliasConfig{{Name: "quick", Model: "fast/model", Provider: "Groq"}}}
	env := &testEnv{
		client:  newFakeClient(),
		catalog: &fakeCatalog{},
		store:   suites.NewStore(filepath.Join(dir, "suites.yaml")),
		history: hist,
	}
	env.opts = Options{
		Client:      env.client,
		Catalog:     env.catalog,
		Suites:      env.store,
		History:     hist,
		Credentials: NewMemoryCredentials(key),
		Router:      router.New(cfg),
		Now:         func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
	return env
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"command":"runTest","config":{"model":"a/b","provider":"auto","prompt":"hi","maxTokens":50}}`))
	require.NoError(t, err)
	rt, ok := cmd.(*RunTest)
	require.True(t, ok)
	assert.Equal(t, "a/b", rt.Config.Model)
	assert.Equal(t, 50, rt.Config.MaxTokens)

	_, err = DecodeCommand([]byte(`{"command":"bogus"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = DecodeCommand([]byte(`{"apiKey":"x"}`))
	assert.ErrorIs(t, err, ErrMissingCommand)

	_, err = DecodeCommand([]byte(`{not json`))
	assert.Error(t, err)

	for name, newCmd := range registry {
		assert.Equal(t, name, newCmd().commandName())
	}
}

func TestEncodeEvent(t *testing.T) {
	data, err := EncodeEvent(APIKeyEvent{HasKey: true, Masked: MaskedKey})
	require.NoError(t, err)
	r := gjson.ParseBytes(data)
	assert.Equal(t, "apiKey", r.Get("command").String())
	assert.True(t, r.Get("hasKey").Bool())
	assert.Equal(t, "sk-or-v1-********************", r.Get("masked").String())

	data, err = EncodeEvent(HistoryClearedEvent{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"historyCleared"}`, string(data))
}

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"getApiKey"}`)
	ev := h.waitFor("apiKey")
	assert.False(t, ev.Get("hasKey").Bool())
	assert.Equal(t, "", ev.Get("masked").String())

	h.send(`{"command":"saveApiKey","apiKey":"  sk-or-v1-secret  "}`)
	assert.True(t, h.waitFor("apiKeySaved").Get("success").Bool())
	assert.Equal(t, "openai/gpt-4o-mini", h.waitFor("models").Get("models.0.id").String())
	assert.Equal(t, "global", h.waitFor("providers").Get("scope").String())
	assert.Equal(t, "sk-or-v1-secret", env.client.lastKey())

	h.send(`{"command":"getApiKey"}`)
	ev = h.waitFor("apiKey")
	assert.True(t, ev.Get("hasKey").Bool())
	assert.Equal(t, MaskedKey, ev.Get("masked").String())

	h.send(`{"command":"clearApiKey"}`)
	h.waitFor("apiKeyCleared")
	assert.False(t, h.waitFor("apiKey").Get("hasKey").Bool())
	assert.Equal(t, "", env.client.lastKey())
}

func TestSaveEmptyAPIKey(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"saveApiKey","apiKey":"   "}`)
	assert.False(t, h.waitFor("apiKeySaved").Get("success").Bool())
	assert.Contains(t, h.waitFor("error").Get("message").String(), "must not be empty")
}

func TestRunTestRequiresKey(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runTest","config":{"model":"a/b","prompt":"hi"}}`)
	assert.Equal(t, "Please set your API key first", h.waitFor("testError").Get("error").String())
}

func TestRunTestCompletesAndRecordsHistory(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runTest","config":{"model":"quick","prompt":"hello"}}`)
	events := h.collectUntil("testCompleted")
	assert.Equal(t, []string{"testStarted", "testProgress", "testCompleted"}, names(events))
	assert.Equal(t, 10.0, events[1].Get("progress.percent").Float())
	assert.Equal(t, "fast/model", events[2].Get("result.model").String())

	cfg := env.client.lastConfig()
	assert.Equal(t, "fast/model", cfg.Model)
	assert.Equal(t, "Groq", cfg.Provider)
	assert.Equal(t, 512, cfg.MaxTokens)

	h.send(`{"command":"getHistory"}`)
	hist := h.waitFor("history")
	assert.Equal(t, int64(1), hist.Get("history.#").Int())
	assert.Equal(t, "hello", hist.Get("history.0.prompt").String())

	h.send(`{"command":"clearHistory"}`)
	h.waitFor("historyCleared")
	h.send(`{"command":"getHistory"}`)
	assert.Equal(t, int64(0), h.waitFor("history").Get("history.#").Int())
}

func TestRunTestError(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	env.client.fail["bad/model"] = apierr.NewAPIError(401, "Unauthorized", []byte("no auth"))
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runTest","config":{"model":"bad/model","prompt":"hello"}}`)
	assert.Equal(t, "API Error: 401 Unauthorized - no auth", h.waitFor("testError").Get("error").String())

	h.send(`{"command":"runTest","config":{"model":"no-slash","prompt":"hello"}}`)
	assert.Contains(t, h.waitFor("testError").Get("error").String(), "unknown model")
}

func TestCancelTest(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	env.client.block = true
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runTest","config":{"model":"a/b","prompt":"hello"}}`)
	h.waitFor("testProgress")
	h.send(`{"command":"cancelTest"}`)

	events := h.collectUntil("testCancelled")
	assert.NotContains(t, names(events), "testError")
}

func TestBusyRejectsSecondRun(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	env.client.block = true
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runTest","config":{"model":"a/b","prompt":"hello"}}`)
	h.waitFor("testProgress")
	h.send(`{"command":"runSuite","payload":{"suiteId":"latency-probe-v1","model":"a/b"}}`)
	assert.Equal(t, "Another run is in progress", h.waitFor("suiteError").Get("error").String())

	h.send(`{"command":"cancelTest"}`)
	h.waitFor("testCancelled")
}

func TestNextRunStartsOnFinalEvent(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	h := startServer(t, New(env.opts))

	for i := 0; i < 5; i++ {
		h.send(`{"command":"runTest","config":{"model":"a/b","prompt":"hello"}}`)
		events := h.collectUntil("testCompleted")
		assert.NotContains(t, names(events), "testError", "run %d", i)
	}

	h.send(`{"command":"runSuite","payload":{"suiteId":"latency-probe-v1","model":"a/b","iterations":1}}`)
	events := h.collectUntil("suiteCompleted")
	assert.NotContains(t, names(events), "suiteError")

	h.send(`{"command":"runTest","config":{"model":"a/b","prompt":"after suite"}}`)
	events = h.collectUntil("testCompleted")
	assert.NotContains(t, names(events), "testError")
}

func TestRunSuite(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	require.NoError(t, env.store.Upsert(models.TestSuite{
		ID:   "mine",
		Name: "Mine",
		Cases: []models.TestCase{
			{ID: "c1", Name: "First", Prompt: "one"},
			{ID: "c2", Name: "Second", Prompt: "two"},
		},
	}))
	env.client.fail["broken/model"] = errors.New("boom")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runSuite","payload":{"suiteId":"mine","model":"a/b","iterations":2}}`)
	events := h.collectUntil("suiteCompleted")
	require.Len(t, events, 5)
	assert.Equal(t, "mine", events[0].Get("progress.suiteId").String())
	assert.Equal(t, int64(1), events[0].Get("progress.step").Int())
	assert.Equal(t, int64(4), events[0].Get("progress.total").Int())
	assert.Equal(t, "Running First (iteration 1/2)", events[0].Get("progress.message").String())

	done := events[4]
	assert.False(t, done.Get("cancelled").Exists())
	assert.Equal(t, int64(4), done.Get("result.results.#").Int())
	assert.Equal(t, 1.0, done.Get("result.aggregates.successRate").Float())

	stored, err := env.history.ListSuites(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	h.send(`{"command":"runSuite","payload":{"suiteId":"mine","model":"broken/model","iterations":1}}`)
	done = h.waitFor("suiteCompleted")
	assert.Equal(t, 0.0, done.Get("result.aggregates.successRate").Float())
	assert.Equal(t, "boom", done.Get("result.results.0.error").String())

	h.send(`{"command":"runSuite","payload":{"suiteId":"nope","model":"a/b"}}`)
	assert.Equal(t, "Suite not found: nope", h.waitFor("suiteError").Get("error").String())
}

func TestRunSuiteRequiresKey(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runSuite","payload":{"suiteId":"coding-v1","model":"a/b"}}`)
	assert.Equal(t, "Please set your API key first", h.waitFor("suiteError").Get("error").String())
}

func TestRunSuiteCancel(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	env.client.block = true
	h := startServer(t, New(env.opts))

	h.send(`{"command":"runSuite","payload":{"suiteId":"coding-v1","model":"a/b"}}`)
	h.waitFor("suiteProgress")
	h.send(`{"command":"cancelTest"}`)

	events := h.collectUntil("suiteCompleted")
	assert.NotContains(t, names(events), "suiteError")
	done := events[len(events)-1]
	assert.True(t, done.Get("cancelled").Bool())
	assert.Equal(t, int64(1), done.Get("result.results.#").Int())

	stored, err := env.history.ListSuites(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRecommend(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"recommendModels","payload":{"modelIds":["slow/model","quick"]}}`)
	events := h.collectUntil("wizardRecommendation")

	progress := 0
	for _, e := range events {
		if e.Get("command").String() == "wizardProgress" {
			progress++
		}
	}
	assert.Equal(t, 6, progress)

	rec := events[len(events)-1].Get("payload")
	assert.Equal(t, suites.DefaultSuiteID, rec.Get("suiteId").String())
	assert.Equal(t, "auto", rec.Get("provider").String())
	require.Equal(t, int64(2), rec.Get("candidates.#").Int())
	assert.Equal(t, "fast/model", rec.Get("candidates.0.modelId").String())
	assert.Equal(t, int64(1), rec.Get("candidates.0.rank").Int())
	assert.Equal(t, "slow/model", rec.Get("candidates.1.modelId").String())
}

func TestRecommendErrors(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))
	h.send(`{"command":"recommendModels","payload":{"modelIds":["a/b"]}}`)
	assert.Equal(t, "Please set your API key first", h.waitFor("wizardError").Get("error").String())

	require.NoError(t, env.opts.Credentials.Set("sk-test"))
	h.send(`{"command":"recommendModels","payload":{"modelIds":[]}}`)
	assert.Equal(t, "no models to compare", h.waitFor("wizardError").Get("error").String())
}

func TestCancelRecommendation(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	env.client.block = true
	h := startServer(t, New(env.opts))

	h.send(`{"command":"recommendModels","payload":{"modelIds":["a/b","c/d"],"suiteId":"latency-probe-v1"}}`)
	h.waitFor("wizardProgress")
	h.send(`{"command":"cancelRecommendation"}`)

	var last gjson.Result
	for {
		last = h.waitFor("wizardProgress")
		if last.Get("progress.cancelled").Bool() {
			break
		}
	}
	assert.Equal(t, "Recommendation cancelled", last.Get("progress.message").String())

	// The job slot frees once the cancelled run unwinds.
	env.client.mu.Lock()
	env.client.block = false
	env.client.mu.Unlock()
	for attempt := 0; ; attempt++ {
		h.send(`{"command":"runTest","config":{"model":"a/b","prompt":"again"}}`)
		ev := h.collectUntilAny("testCompleted", "testError")
		if ev.Get("command").String() == "testCompleted" {
			break
		}
		require.Less(t, attempt, 50, "job slot never freed")
		time.Sleep(20 * time.Millisecond)
	}
}

// collectUntilAny returns the first event whose name is in want.
func (h *harness) collectUntilAny(want ...string) gjson.Result {
	h.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-h.events:
			if !ok {
				h.t.Fatalf("event stream closed")
			}
			r := gjson.ParseBytes(ev)
			for _, w := range want {
				if r.Get("command").String() == w {
					return r
				}
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestCatalogCommands(t *testing.T) {
	env := newTestEnv(t, "sk-test")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"getModels"}`)
	assert.Equal(t, int64(1), h.waitFor("models").Get("models.#").Int())

	h.send(`{"command":"getProvidersForModel","modelId":"openai/gpt-4o"}`)
	ev := h.waitFor("providers")
	assert.Equal(t, "model", ev.Get("scope").String())
	assert.Equal(t, "openai/gpt-4o", ev.Get("modelId").String())
	assert.Equal(t, "auto", ev.Get("providers.0").String())

	h.send(`{"command":"getAllProviders"}`)
	ev = h.waitFor("providers")
	assert.Equal(t, "global", ev.Get("scope").String())
	assert.False(t, ev.Get("modelId").Exists())
}

func TestSuiteCommands(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"getSuites"}`)
	assert.Equal(t, int64(3), h.waitFor("suites").Get("suites.#").Int())

	h.send(`{"command":"saveCustomSuite","suite":{"id":"mine","name":"Mine","cases":[{"id":"c1","name":"C1","prompt":"p"}]}}`)
	assert.Equal(t, int64(4), h.waitFor("suites").Get("suites.#").Int())

	h.send(`{"command":"saveCustomSuite","suite":{"id":"broken","name":"Broken","cases":[]}}`)
	assert.Contains(t, h.waitFor("error").Get("message").String(), "invalid suite broken")

	h.send(`{"command":"deleteCustomSuite","suiteId":"coding-v1"}`)
	assert.Contains(t, h.waitFor("error").Get("message").String(), "built-in")

	h.send(`{"command":"importSuitesJson","data":"{\"suites\":[{\"id\":\"imp\",\"name\":\"Imported\",\"cases\":[{\"id\":\"x\",\"name\":\"X\",\"prompt\":\"p\"}]},{\"id\":\"bad\"}]}"}`)
	imp := h.waitFor("suitesImported")
	assert.Equal(t, "imp", imp.Get("imported.0").String())
	assert.Equal(t, int64(1), imp.Get("skipped.#").Int())
	assert.Equal(t, int64(5), h.waitFor("suites").Get("suites.#").Int())

	h.send(`{"command":"importSuitesJson","data":[{"id":"nope"}]}`)
	assert.Equal(t, "No valid suites to import", h.waitFor("error").Get("message").String())

	h.send(`{"command":"exportSuitesJson"}`)
	exp := h.waitFor("exportReady")
	assert.Equal(t, "suites", exp.Get("kind").String())
	assert.Equal(t, suites.ExportFileName, exp.Get("fileName").String())
	assert.Equal(t, int64(2), gjson.Get(exp.Get("content").String(), "suites.#").Int())

	h.send(`{"command":"deleteCustomSuite","suiteId":"mine"}`)
	assert.Equal(t, int64(4), h.waitFor("suites").Get("suites.#").Int())
}

func TestExportCommands(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))

	payload := `{"suiteId":"s","model":"a/b","provider":"auto","results":[{"caseId":"c1","iteration":1,"ok":true,"result":{"tokensPerSecond":12.5,"timeToFirstToken":0.25,"totalTime":1,"cost":0.001,"completionTokens":10}}],"aggregates":{"successRate":1}}`

	h.send(`{"command":"exportSuiteCsv","payload":` + payload + `}`)
	ev := h.waitFor("exportReady")
	assert.Equal(t, "csv", ev.Get("kind").String())
	assert.True(t, strings.HasPrefix(ev.Get("content").String(), "caseId,iteration,ok,"))
	assert.Contains(t, ev.Get("content").String(), "c1,1,true,12.50,0.25,1.00,0.0010,,10,")

	h.send(`{"command":"exportDocument","payload":` + payload + `}`)
	ev = h.waitFor("documentReady")
	assert.Equal(t, "markdown", ev.Get("format").String())
	assert.Contains(t, ev.Get("content").String(), "- Date: 2026-03-01 09:00:00 UTC")

	h.send(`{"command":"exportDocument","format":"html","payload":` + payload + `}`)
	ev = h.waitFor("documentReady")
	assert.Equal(t, "html", ev.Get("format").String())
	assert.Contains(t, ev.Get("content").String(), "<table>")

	h.send(`{"command":"exportDocument","format":"pdf","payload":` + payload + `}`)
	assert.Contains(t, h.waitFor("error").Get("message").String(), "unsupported document format")

	h.send(`{"command":"exportResults","results":[{"model":"a/b","output":"hi"}]}`)
	ev = h.waitFor("exportReady")
	assert.Equal(t, "json", ev.Get("kind").String())
	assert.Equal(t, "a/b", gjson.Get(ev.Get("content").String(), "0.model").String())
}

func TestUnknownAndMalformedCommands(t *testing.T) {
	env := newTestEnv(t, "")
	h := startServer(t, New(env.opts))

	h.send(`{"command":"bogus"}`)
	assert.Equal(t, "unknown command: bogus", h.waitFor("error").Get("message").String())

	h.send(`not json`)
	assert.Equal(t, "parse error", h.waitFor("error").Get("message").String())
}

func TestNotifySuites(t *testing.T) {
	env := newTestEnv(t, "")
	srv := New(env.opts)
	srv.NotifySuites(nil) // no writer yet

	h := startServer(t, srv)
	h.send(`{"command":"getSuites"}`)
	h.waitFor("suites")

	srv.NotifySuites(suites.Builtin()[:1])
	assert.Equal(t, int64(1), h.waitFor("suites").Get("suites.#").Int())
}
