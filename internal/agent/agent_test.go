package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/provider"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/review"
)

// scriptedProvider answers with a queue of canned responses; once drained it
// repeats the last one.
type scriptedProvider struct {
	responses []string
	calls     int
	requests  []provider.ChatRequest
}

func (s *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	s.requests = append(s.requests, req)
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	if i < 0 {
		return provider.ChatResponse{}, errors.New("no scripted response")
	}
	return provider.ChatResponse{Content: s.responses[i]}, nil
}

func (s *scriptedProvider) Name() string { return "scripted" }

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

func newAgent(t *testing.T, p provider.Provider, populateKB bool) (*Agent, *kb.KnowledgeBase) {
	t.Helper()
	source := &fakeSource{
		configs:   map[string]models.ModelConfig{"m": {Provider: "openai", MaxTokens: 512}},
		providers: map[string]provider.Provider{"m": p},
	}
	store, err := kb.NewSQLiteStore(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	knowledge := kb.New(store, flatEmbedder{})
	if populateKB {
		_, err := knowledge.Ingest(context.Background(), fstest.MapFS{
			"security/x.md": &fstest.MapFile{Data: []byte("# X\n\nValidate inputs.")},
		})
		require.NoError(t, err)
	}

	reviewer := review.New(source)
	ragReviewer := rag.New(source, knowledge, reviewer)
	return New(source, NewToolbox(reviewer, ragReviewer, knowledge)), knowledge
}

func TestReview_SynthesizeImmediately(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"The code is short; a plain review suffices.",
		"REASONING: nothing more needed\nACTION: synthesize",
		"FINAL REPORT",
	}}
	a, _ := newAgent(t, p, false)

	report := a.Review(context.Background(), Request{Code: "x = 1", Language: "python", ModelID: "m"})

	assert.Equal(t, "FINAL REPORT", report.Results)
	assert.True(t, report.Metadata.WorkflowComplete)
	assert.Zero(t, report.Analysis.ToolsUsed)
	assert.Equal(t, 2, report.Analysis.Iterations)
	assert.Contains(t, report.Analysis.Reasoning, "Initial analysis")
}

func TestReview_ReasoningCarriesConversation(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"Plan: the loop on line 3 looks quadratic.",
		"REASONING: done\nACTION: synthesize",
		"FINAL",
	}}
	a, _ := newAgent(t, p, false)

	a.Review(context.Background(), Request{Code: "x = 1", Language: "python", ModelID: "m"})

	// The reasoning prompt must include the earlier exchange, so the model
	// sees its own analysis when deciding the next action.
	require.GreaterOrEqual(t, len(p.requests), 2)
	reasonPrompt := p.requests[1].UserPrompt
	assert.Contains(t, reasonPrompt, "Conversation so far:")
	assert.Contains(t, reasonPrompt, "the loop on line 3 looks quadratic")
}

func TestReview_ToolThenSynthesize(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"Plan: check the knowledge base first.",
		"ACTION: knowledge_base_stats",
		"ACTION: synthesize",
		"REPORT WITH STATS",
	}}
	a, _ := newAgent(t, p, true)

	report := a.Review(context.Background(), Request{Code: "x", Language: "go", ModelID: "m"})

	require.Equal(t, 1, report.Analysis.ToolsUsed)
	assert.Equal(t, "REPORT WITH STATS", report.Results)
}

func TestReview_TerminatesUnderAdversarialModel(t *testing.T) {
	// A model that always picks another tool must still hit the cap.
	p := &scriptedProvider{responses: []string{"ACTION: knowledge_base_stats"}}
	a, _ := newAgent(t, p, true)

	report := a.Review(context.Background(), Request{
		Code: "x", Language: "go", ModelID: "m", MaxIterations: 3,
	})

	assert.LessOrEqual(t, report.Analysis.Iterations, 4)
	assert.True(t, report.Metadata.WorkflowComplete)
	assert.NotEmpty(t, report.Results)
}

func TestReview_GibberishKeepsReasoningUntilCap(t *testing.T) {
	p := &scriptedProvider{responses: []string{"ACTION: dance"}}
	a, _ := newAgent(t, p, false)

	report := a.Review(context.Background(), Request{
		Code: "x", Language: "go", ModelID: "m", MaxIterations: 2,
	})

	// No tool is ever invoked; the cap forces synthesis.
	assert.Zero(t, report.Analysis.ToolsUsed)
	assert.True(t, report.Metadata.WorkflowComplete)
}

func TestReview_ModelFailureStillProducesReport(t *testing.T) {
	source := &fakeSource{configs: map[string]models.ModelConfig{}}
	store, err := kb.NewSQLiteStore(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	knowledge := kb.New(store, flatEmbedder{})
	reviewer := review.New(source)
	a := New(source, NewToolbox(reviewer, rag.New(source, knowledge, reviewer), knowledge))

	report := a.Review(context.Background(), Request{Code: "x", Language: "go", ModelID: "ghost"})

	assert.Contains(t, report.Results, "Error synthesizing results")
	assert.Contains(t, report.Analysis.Reasoning, "Analysis failed")
	assert.True(t, report.Metadata.WorkflowComplete)
}

func TestReview_ToolFailureRecordedAndLoopContinues(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"Plan.",
		"ACTION: knowledge_base_stats",
		"ACTION: synthesize",
		"DONE",
	}}
	a, _ := newAgent(t, p, false)
	// Break the knowledge base under the tool.
	store, err := kb.NewSQLiteStore(filepath.Join(t.TempDir(), "broken.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	broken := kb.New(store, flatEmbedder{})
	a.tools.knowledge = broken

	report := a.Review(context.Background(), Request{Code: "x", Language: "go", ModelID: "m"})

	require.Equal(t, 1, report.Analysis.ToolsUsed)
	assert.Equal(t, "DONE", report.Results)
}

func TestParseAction(t *testing.T) {
	tb := NewToolbox(nil, nil, nil)

	cases := []struct {
		response string
		want     string
	}{
		{"REASONING: x\nACTION: rag_code_review", ToolRAGReview},
		{"reasoning\naction: synthesize", actionSynthesize},
		{"ACTION: \"traditional_code_review\"", ToolTraditionalReview},
		{"ACTION: run search_guidelines with query 'sql'", ToolSearchGuidelines},
		{"I would start with compare_review_approaches here.", ToolCompareApproaches},
		{"No structure whatsoever.", actionSynthesize},
		{"ACTION: interpretive dance", "interpretive dance"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, tb.parseAction(c.response), "response: %q", c.response)
	}
}

func TestToolbox_CallUnknown(t *testing.T) {
	tb := NewToolbox(nil, nil, nil)
	_, err := tb.Call(context.Background(), "nonexistent", &State{})
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	a, _ := newAgent(t, &scriptedProvider{}, false)
	info := a.Info()

	assert.Equal(t, "CodeReviewAgent", info.AgentType)
	assert.Len(t, info.AvailableTools, 5)
	assert.Equal(t, DefaultMaxIterations, info.MaxIterations)
	assert.Contains(t, info.WorkflowPhases, string(PhaseReason))
}
