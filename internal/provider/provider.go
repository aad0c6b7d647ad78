// Package provider implements clients for the hosted LLM APIs the reviewer
// can forward code to: Anthropic, OpenAI, Google Gemini, HuggingFace, and
// Ollama. All clients share the Provider interface and a common retry policy.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/reviewkit/reviewkit/internal/models"
)

// ChatRequest is a single system+user prompt exchange.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// ChatResponse is the raw model output.
type ChatResponse struct {
	Content    string
	TokensUsed int
}

// Provider is the abstraction over one hosted LLM API.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Name() string
}

// Embedder converts text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const defaultMaxTokens = 4096

// httpClient is shared by the raw-HTTP providers.
func httpClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

// New constructs a provider client for the given model configuration.
func New(cfg models.ModelConfig, pc models.ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg, pc.BaseURL)
	case "google", "gemini":
		return NewGemini(cfg)
	case "huggingface":
		return NewHuggingFace(cfg)
	case "ollama", "lmstudio":
		return NewOllama(cfg, pc.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
