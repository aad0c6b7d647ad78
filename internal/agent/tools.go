package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/review"
)

// Tool names the agent may choose between reasoning steps.
const (
	ToolTraditionalReview = "traditional_code_review"
	ToolRAGReview         = "rag_code_review"
	ToolSearchGuidelines  = "search_guidelines"
	ToolCompareApproaches = "compare_review_approaches"
	ToolKnowledgeStats    = "knowledge_base_stats"
)

// toolFunc runs one tool against the current workflow state and returns its
// output as a JSON string.
type toolFunc func(ctx context.Context, st *State) (string, error)

// Toolbox is the fixed tool set exposed to the reasoning loop.
type Toolbox struct {
	reviewer    *review.Reviewer
	ragReviewer *rag.Reviewer
	knowledge   *kb.KnowledgeBase

	funcs map[string]toolFunc
	descs map[string]string
	order []string
}

// NewToolbox wires the shared reviewers into the agent's tool set.
func NewToolbox(reviewer *review.Reviewer, ragReviewer *rag.Reviewer, knowledge *kb.KnowledgeBase) *Toolbox {
	t := &Toolbox{
		reviewer:    reviewer,
		ragReviewer: ragReviewer,
		knowledge:   knowledge,
	}
	t.funcs = map[string]toolFunc{
		ToolTraditionalReview: t.traditionalReview,
		ToolRAGReview:         t.ragReview,
		ToolSearchGuidelines:  t.searchGuidelines,
		ToolCompareApproaches: t.compareApproaches,
		ToolKnowledgeStats:    t.knowledgeStats,
	}
	t.descs = map[string]string{
		ToolTraditionalReview: "Standard LLM-based code review",
		ToolRAGReview:         "RAG-enhanced code review with industry guidelines",
		ToolSearchGuidelines:  "Search coding guidelines and best practices",
		ToolCompareApproaches: "Compare RAG vs traditional review methods",
		ToolKnowledgeStats:    "Get knowledge base statistics",
	}
	t.order = []string{
		ToolRAGReview,
		ToolTraditionalReview,
		ToolSearchGuidelines,
		ToolCompareApproaches,
		ToolKnowledgeStats,
	}
	return t
}

// Has reports whether name is a known tool.
func (t *Toolbox) Has(name string) bool {
	_, ok := t.funcs[name]
	return ok
}

// Descriptions maps tool names to human-readable summaries.
func (t *Toolbox) Descriptions() map[string]string {
	out := make(map[string]string, len(t.descs))
	for k, v := range t.descs {
		out[k] = v
	}
	return out
}

// Call runs the named tool.
func (t *Toolbox) Call(ctx context.Context, name string, st *State) (string, error) {
	fn, ok := t.funcs[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return fn(ctx, st)
}

// parseAction extracts the planned action from a reasoning response: an
// "ACTION:" line wins, then the first known tool name mentioned anywhere,
// then synthesize.
func (t *Toolbox) parseAction(response string) string {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 7 || !strings.EqualFold(line[:7], "action:") {
			continue
		}
		action := strings.ToLower(strings.TrimSpace(line[7:]))
		action = strings.Trim(action, `"'`)
		if t.Has(action) || action == actionSynthesize {
			return action
		}
		// The model named the tool inside a longer action line.
		for _, name := range t.order {
			if strings.Contains(action, name) {
				return name
			}
		}
		if strings.Contains(action, actionSynthesize) {
			return actionSynthesize
		}
		// Unrecognized action: hand it back so the loop keeps reasoning
		// until the iteration cap forces synthesis.
		return action
	}

	for _, name := range t.order {
		if strings.Contains(response, name) {
			return name
		}
	}
	return actionSynthesize
}

func (t *Toolbox) traditionalReview(ctx context.Context, st *State) (string, error) {
	result := t.reviewer.Review(ctx, st.Code, st.Language, models.TechniqueZeroShot, st.ModelID)
	return marshalTool(map[string]any{
		"review_type": "traditional",
		"result":      result,
	})
}

func (t *Toolbox) ragReview(ctx context.Context, st *State) (string, error) {
	result := t.ragReviewer.Review(ctx, st.Code, st.Language, st.ModelID, 0)
	return marshalTool(map[string]any{
		"review_type": "rag_enhanced",
		"result":      result,
	})
}

func (t *Toolbox) searchGuidelines(ctx context.Context, st *State) (string, error) {
	// The reasoning transcript carries no structured parameters, so the
	// search query is derived from the request itself.
	query := fmt.Sprintf("%s %s", st.Language, st.UserRequest)
	hits, err := t.ragReviewer.SearchGuidelines(ctx, query, "", 3)
	if err != nil {
		return "", fmt.Errorf("guidelines search failed: %w", err)
	}
	return marshalTool(map[string]any{
		"query":         query,
		"results_count": len(hits),
		"guidelines":    hits,
	})
}

func (t *Toolbox) compareApproaches(ctx context.Context, st *State) (string, error) {
	return marshalTool(t.ragReviewer.CompareWithTraditional(ctx, st.Code, st.Language, st.ModelID))
}

func (t *Toolbox) knowledgeStats(ctx context.Context, st *State) (string, error) {
	stats, err := t.knowledge.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("knowledge base stats failed: %w", err)
	}
	return marshalTool(stats)
}

func marshalTool(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool output: %w", err)
	}
	return string(data), nil
}
