// Package review runs single-model code reviews and multi-model comparisons.
// Failures at any stage are converted into Error-rated ReviewResults; nothing
// in this package panics or lets a provider error escape to the caller.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/prompt"
	"github.com/reviewkit/reviewkit/internal/provider"
)

// ModelSource is the slice of the registry the reviewer needs.
type ModelSource interface {
	Get(id string) (models.ModelConfig, bool)
	Available(ctx context.Context) map[string]string
	Client(id string) (provider.Provider, error)
}

// Reviewer forwards code to a model and parses the response into a ReviewResult.
type Reviewer struct {
	source ModelSource
}

// New creates a Reviewer backed by the given model source.
func New(source ModelSource) *Reviewer {
	return &Reviewer{source: source}
}

// Review runs one code review. Any failure (unknown model or technique,
// provider error, unparseable response) yields an Error-rated result.
func (r *Reviewer) Review(ctx context.Context, code, language string, technique models.Technique, modelID string) *models.ReviewResult {
	start := time.Now()

	cfg, ok := r.source.Get(modelID)
	if !ok {
		return errorResult(start, modelID, "unknown", technique,
			fmt.Errorf("model %s not found in registry", modelID))
	}

	system, user, err := prompt.Build(technique, language, code)
	if err != nil {
		return errorResult(start, modelID, cfg.Provider, technique, err)
	}

	client, err := r.source.Client(modelID)
	if err != nil {
		return errorResult(start, modelID, cfg.Provider, technique, err)
	}

	resp, err := client.Chat(ctx, provider.ChatRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		slog.Warn("model call failed", "model", modelID, "error", err)
		return errorResult(start, modelID, cfg.Provider, technique, err)
	}

	parsed := parseResponse(resp.Content)

	return &models.ReviewResult{
		ID:            models.NewULID(),
		Rating:        parsed.Rating,
		Issues:        parsed.Issues,
		Suggestions:   parsed.Suggestions,
		Reasoning:     parsed.Reasoning,
		ModelUsed:     modelID,
		Provider:      cfg.Provider,
		Technique:     technique,
		ExecutionTime: time.Since(start).Seconds(),
		RawResponse:   resp.Content,
		CreatedAt:     time.Now(),
	}
}

// errorResult builds the fallback result for a failed review.
func errorResult(start time.Time, modelID, providerName string, technique models.Technique, err error) *models.ReviewResult {
	return &models.ReviewResult{
		ID:            models.NewULID(),
		Rating:        models.RatingError,
		Issues:        []string{fmt.Sprintf("Error during review: %v", err)},
		Suggestions:   []string{"Check model configuration and API keys"},
		Reasoning:     fmt.Sprintf("Failed to complete review: %v", err),
		ModelUsed:     modelID,
		Provider:      providerName,
		Technique:     technique,
		ExecutionTime: time.Since(start).Seconds(),
		CreatedAt:     time.Now(),
	}
}
