// Package rag augments code reviews with guidelines retrieved from the
// knowledge base. When retrieval is unavailable the reviewer degrades to a
// plain zero-shot review rather than failing.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/prompt"
	"github.com/reviewkit/reviewkit/internal/provider"
	"github.com/reviewkit/reviewkit/internal/review"
)

const (
	defaultGuidelines      = 3
	defaultSearchResults   = 5
	fallbackParseReasoning = "Error parsing enhanced review response"
)

// Reviewer runs guideline-augmented reviews over a knowledge base.
type Reviewer struct {
	source    review.ModelSource
	knowledge *kb.KnowledgeBase
	base      *review.Reviewer
}

// New creates a RAG reviewer. base handles the zero-shot fallback path.
func New(source review.ModelSource, knowledge *kb.KnowledgeBase, base *review.Reviewer) *Reviewer {
	return &Reviewer{source: source, knowledge: knowledge, base: base}
}

// ragPayload extends the standard review body with guideline citations.
type ragPayload struct {
	Issues         []string      `json:"issues"`
	Suggestions    []string      `json:"suggestions"`
	Rating         models.Rating `json:"rating"`
	Reasoning      string        `json:"reasoning"`
	GuidelinesUsed []string      `json:"guidelines_used"`
}

// Review runs a guideline-augmented review. An empty knowledge base, a
// retrieval miss, or a model failure all fall back to a zero-shot review.
func (r *Reviewer) Review(ctx context.Context, code, language, modelID string, numGuidelines int) *models.ReviewResult {
	if numGuidelines <= 0 {
		numGuidelines = defaultGuidelines
	}

	if r.knowledge.Empty(ctx) {
		slog.Warn("knowledge base empty, falling back to traditional review")
		return r.fallback(ctx, code, language, modelID)
	}

	docs, err := r.knowledge.Search(ctx, searchQuery(code, language), numGuidelines, "")
	if err != nil || len(docs) == 0 {
		slog.Warn("no relevant guidelines found, falling back to traditional review", "error", err)
		return r.fallback(ctx, code, language, modelID)
	}

	cfg, ok := r.source.Get(modelID)
	if !ok {
		return r.fallback(ctx, code, language, modelID)
	}
	client, err := r.source.Client(modelID)
	if err != nil {
		slog.Warn("model unavailable for guideline review", "model", modelID, "error", err)
		return r.fallback(ctx, code, language, modelID)
	}

	start := time.Now()
	resp, err := client.Chat(ctx, provider.ChatRequest{
		SystemPrompt: prompt.RAGSystemPrompt,
		UserPrompt:   prompt.BuildRAG(language, code, buildContext(docs)),
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		slog.Warn("guideline review call failed", "model", modelID, "error", err)
		return r.fallback(ctx, code, language, modelID)
	}

	result := parseRAGResponse(resp.Content, modelID, cfg.Provider)
	result.ExecutionTime = time.Since(start).Seconds()
	result.GuidelineCount = len(docs)
	result.GuidelineCategories = categoriesOf(docs)

	slog.Info("rag review completed", "model", modelID, "guidelines", len(docs))
	return result
}

func (r *Reviewer) fallback(ctx context.Context, code, language, modelID string) *models.ReviewResult {
	return r.base.Review(ctx, code, language, models.TechniqueZeroShot, modelID)
}

// parseRAGResponse decodes the extended review body. An unparseable response
// yields a Fair-rated result, not an error: the model did answer.
func parseRAGResponse(response, modelID, providerName string) *models.ReviewResult {
	result := &models.ReviewResult{
		ID:          models.NewULID(),
		ModelUsed:   modelID,
		Provider:    providerName,
		Technique:   models.TechniqueRAG,
		RawResponse: response,
		CreatedAt:   time.Now(),
	}

	var p ragPayload
	if err := review.ParseInto(response, &p); err != nil {
		result.Rating = models.RatingFair
		result.Issues = []string{"Failed to parse detailed review"}
		result.Suggestions = []string{"Review response format"}
		result.Reasoning = fallbackParseReasoning
		return result
	}

	result.Rating = p.Rating
	if result.Rating == "" {
		result.Rating = models.RatingFair
	}
	result.Issues = p.Issues
	result.Suggestions = p.Suggestions
	result.Reasoning = p.Reasoning
	result.GuidelinesUsed = p.GuidelinesUsed
	return result
}

// searchQuery derives a retrieval query from patterns in the code itself.
func searchQuery(code, language string) string {
	terms := []string{language}
	lower := strings.ToLower(code)

	if strings.Contains(lower, "password") || strings.Contains(lower, "secret") {
		terms = append(terms, "security authentication")
	}
	if strings.Contains(code, "for") && strings.Contains(code, "range") {
		terms = append(terms, "performance optimization loops")
	}
	if strings.Contains(code, "def ") || strings.Contains(code, "func ") || strings.Contains(code, "class ") {
		terms = append(terms, "function naming conventions")
	}
	if strings.Contains(lower, "try") || strings.Contains(lower, "except") || strings.Contains(lower, "catch") {
		terms = append(terms, "error handling")
	}
	if strings.Contains(code, "import ") {
		terms = append(terms, "imports best practices")
	}
	upper := strings.ToUpper(code)
	if strings.Contains(upper, "SELECT") || strings.Contains(upper, "INSERT") {
		terms = append(terms, "SQL injection security")
	}

	return fmt.Sprintf("%s code review best practices %s", language, strings.Join(terms, " "))
}

// buildContext formats retrieved guidelines for the prompt.
func buildContext(docs []models.ScoredChunk) string {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "## Guideline %d: %s (%s)\n%s\n\n", i+1, d.Meta.Title, d.Meta.Category, d.Content)
	}
	return strings.TrimSpace(b.String())
}

// categoriesOf returns the distinct categories of the retrieved chunks.
func categoriesOf(docs []models.ScoredChunk) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range docs {
		if !seen[d.Meta.Category] {
			seen[d.Meta.Category] = true
			out = append(out, d.Meta.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Guideline is one knowledge-base search hit.
type Guideline struct {
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
}

// SearchGuidelines queries the knowledge base directly, without a review.
func (r *Reviewer) SearchGuidelines(ctx context.Context, query, category string, limit int) ([]Guideline, error) {
	if limit <= 0 {
		limit = defaultSearchResults
	}
	docs, err := r.knowledge.Search(ctx, query, limit, category)
	if err != nil {
		return nil, err
	}
	out := make([]Guideline, len(docs))
	for i, d := range docs {
		out[i] = Guideline{
			Content:  d.Content,
			Category: d.Meta.Category,
			Title:    d.Meta.Title,
			Source:   d.Meta.Source,
			Score:    d.Score,
		}
	}
	return out, nil
}

// Comparison pairs a guideline-augmented review with a plain zero-shot review
// of the same code.
type Comparison struct {
	Traditional *models.ReviewResult `json:"traditional_review"`
	RAGEnhanced *models.ReviewResult `json:"rag_enhanced_review"`
	Delta       ComparisonDelta      `json:"comparison"`
}

// ComparisonDelta summarizes what the retrieved guidelines added.
type ComparisonDelta struct {
	GuidelinesReferenced  int      `json:"guidelines_referenced"`
	AdditionalIssuesFound int      `json:"additional_issues_found"`
	AdditionalSuggestions int      `json:"additional_suggestions"`
	GuidelineCategories   []string `json:"guideline_categories"`
}

// CompareWithTraditional reviews the same code with and without retrieval.
func (r *Reviewer) CompareWithTraditional(ctx context.Context, code, language, modelID string) *Comparison {
	traditional := r.base.Review(ctx, code, language, models.TechniqueZeroShot, modelID)
	enhanced := r.Review(ctx, code, language, modelID, defaultGuidelines)

	return &Comparison{
		Traditional: traditional,
		RAGEnhanced: enhanced,
		Delta: ComparisonDelta{
			GuidelinesReferenced:  enhanced.GuidelineCount,
			AdditionalIssuesFound: len(enhanced.Issues) - len(traditional.Issues),
			AdditionalSuggestions: len(enhanced.Suggestions) - len(traditional.Suggestions),
			GuidelineCategories:   enhanced.GuidelineCategories,
		},
	}
}
