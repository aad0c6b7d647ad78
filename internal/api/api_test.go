package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewkit/reviewkit/internal/agent"
	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/provider"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/review"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Chat(context.Context, provider.ChatRequest) (provider.ChatResponse, error) {
	if f.err != nil {
		return provider.ChatResponse{}, f.err
	}
	return provider.ChatResponse{Content: f.response}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type fakeSource struct {
	configs   map[string]models.ModelConfig
	providers map[string]provider.Provider
}

func (f *fakeSource) Get(id string) (models.ModelConfig, bool) {
	cfg, ok := f.configs[id]
	return cfg, ok
}

func (f *fakeSource) Available(context.Context) map[string]string {
	out := map[string]string{}
	for id, cfg := range f.configs {
		out[id] = cfg.Description
	}
	return out
}

func (f *fakeSource) Client(id string) (provider.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, errors.New("no client for " + id)
	}
	return p, nil
}

type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 1}
	}
	return out, nil
}

const goodResponse = `{"issues":["hardcoded credential"],"suggestions":["use env vars"],"rating":"Poor","reasoning":"security problem"}`

// newTestServer wires a full server over fakes: one model, a tiny knowledge
// base, and an examples dir with two Python files.
func newTestServer(t *testing.T, p provider.Provider) *Server {
	t.Helper()

	source := &fakeSource{
		configs:   map[string]models.ModelConfig{"test-model": {Provider: "openai", Description: "test"}},
		providers: map[string]provider.Provider{"test-model": p},
	}

	examplesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(examplesDir, "sample.py"), []byte("password = \"admin\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(examplesDir, "clean.py"), []byte("def add(a, b):\n    return a + b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(examplesDir, "notes.txt"), []byte("not source"), 0o644))

	store, err := kb.NewSQLiteStore(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	corpus := fstest.MapFS{
		"security/creds.md": &fstest.MapFile{Data: []byte("# Credentials\n\nNever hardcode secrets.")},
	}
	knowledge := kb.New(store, flatEmbedder{})
	_, err = knowledge.Ingest(context.Background(), corpus)
	require.NoError(t, err)

	reviewer := review.New(source)
	ragReviewer := rag.New(source, knowledge, reviewer)
	reviewAgent := agent.New(source, agent.NewToolbox(reviewer, ragReviewer, knowledge))

	return NewServer(source, reviewer, ragReviewer, knowledge, reviewAgent, examplesDir, corpus)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestHome(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 2, body["available_files"])
	assert.NotEmpty(t, body["endpoints"])
}

func TestListModels(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/models", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["count"])
}

func TestListFiles(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/files", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	files := body["files"].([]any)
	require.Len(t, files, 2)
	first := files[0].(map[string]any)
	assert.Equal(t, "clean.py", first["filename"])
	assert.EqualValues(t, 2, first["lines"])
}

func TestReviewFile(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/review/sample.py?technique=zero_shot", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Poor", body["rating"])
	assert.Equal(t, "sample.py", body["filename"])
	assert.Equal(t, "test-model", body["model_used"])
}

func TestReviewFile_ExtensionAppended(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/review/sample", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sample.py", body["filename"])
}

func TestReviewFile_NotFound(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/review/ghost.py", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Len(t, body["available_files"], 2)
}

func TestReviewFile_UnknownModel(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/review/sample.py?model=ghost", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "not available")
	assert.NotEmpty(t, body["available_models"])
}

func TestReviewFile_NoModelsConfigured(t *testing.T) {
	s := newTestServer(t, &fakeProvider{response: goodResponse})
	s.source = &fakeSource{configs: map[string]models.ModelConfig{}}

	rec, body := doRequest(t, s.Router(), "GET", "/review/sample.py", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["error"], "No AI models available")
}

func TestReviewFile_ProviderFailureIsHTTP200ErrorResult(t *testing.T) {
	h := newTestServer(t, &fakeProvider{err: errors.New("upstream down")}).Router()

	rec, body := doRequest(t, h, "GET", "/review/sample.py", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Error", body["rating"])
	assert.Contains(t, body["issues"].([]any)[0], "upstream down")
}

func TestReviewCustom(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/review-custom",
		`{"code":"eval(input())","language":"python","technique":"cot"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cot", body["technique"])
	assert.EqualValues(t, len("eval(input())"), body["code_size"])
}

func TestReviewCustom_MissingCode(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/review-custom", `{"language":"python"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Code content is required", body["error"])
}

func TestReviewCustom_InvalidJSON(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, _ := doRequest(t, h, "POST", "/review-custom", "not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewAll(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/review-all", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["total_files"])
	assert.EqualValues(t, 2, summary["successful_reviews"])
	assert.EqualValues(t, 0, summary["failed_reviews"])
	assert.Len(t, body["results"], 2)
}

func TestCompareModels(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/compare-models", `{"code":"x = 1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	results := body["results"].(map[string]any)
	assert.Contains(t, results, "test-model")
}

func TestRAGReviewCustom(t *testing.T) {
	response := `{"issues":["x"],"suggestions":["y"],"rating":"Fair","reasoning":"z","guidelines_used":["Credentials"]}`
	h := newTestServer(t, &fakeProvider{response: response}).Router()

	rec, body := doRequest(t, h, "POST", "/rag/review-custom", `{"code":"password = 'x'"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rag", body["technique"])
	assert.Equal(t, []any{"Credentials"}, body["guidelines_used"])
	assert.EqualValues(t, 1, body["guideline_count"])
}

func TestRAGCompare(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/rag/compare", `{"code":"x = 1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	comparison := body["comparison"].(map[string]any)
	assert.Contains(t, comparison, "traditional_review")
	assert.Contains(t, comparison, "rag_enhanced_review")
}

func TestSearchGuidelines(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/rag/search-guidelines", `{"query":"secrets"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
}

func TestSearchGuidelines_MissingQuery(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/rag/search-guidelines", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Search query is required", body["error"])
}

func TestKnowledgeBaseStats(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/rag/knowledge-base/stats", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["total_chunks"])
}

func TestRefreshKnowledgeBase(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/rag/knowledge-base/refresh", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Knowledge base refreshed successfully", body["message"])
	assert.EqualValues(t, 1, body["chunks"])
}

func TestAgentInfo(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "GET", "/agent/info", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	info := body["agent_info"].(map[string]any)
	assert.Equal(t, "CodeReviewAgent", info["agent_type"])
	assert.Len(t, info["available_tools"], 5)
}

func TestAgentReview_MissingCode(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, body := doRequest(t, h, "POST", "/agent/review", `{"language":"go"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: code", body["error"])
}

func TestAgentReview(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: "ACTION: synthesize"}).Router()

	rec, body := doRequest(t, h, "POST", "/agent/review", `{"code":"x = 1","max_iterations":2}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	agentReview := body["agent_review"].(map[string]any)
	meta := agentReview["metadata"].(map[string]any)
	assert.Equal(t, true, meta["workflow_complete"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &fakeProvider{response: goodResponse}).Router()

	rec, _ := doRequest(t, h, "OPTIONS", "/models", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSafeName(t *testing.T) {
	assert.True(t, safeName("sample.py"))
	assert.False(t, safeName(""))
	assert.False(t, safeName(".hidden"))
	assert.False(t, safeName("../secrets.py"))
	assert.False(t, safeName("a/b.py"))
	assert.False(t, safeName(`a\b.py`))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("one"))
	assert.Equal(t, 2, countLines("one\ntwo\n"))
}
