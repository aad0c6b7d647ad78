package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/reviewkit/reviewkit/internal/models"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama speaks the OpenAI-compatible chat API exposed by Ollama and LM Studio.
type Ollama struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOllama creates an Ollama provider. No API key is required.
func NewOllama(cfg models.ModelConfig, baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	baseURL = normalizeOllamaURL(baseURL)

	return &Ollama{
		model:       cfg.ModelName,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		// Local models can be slow to load on first call.
		client: &http.Client{Timeout: 300 * time.Second},
	}, nil
}

// normalizeOllamaURL strips any path suffix users tend to include.
func normalizeOllamaURL(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	return baseURL
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens: maxTokens,
	}
	if temp := pickTemperature(req.Temperature, o.temperature); temp > 0 {
		body.Temperature = &temp
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := o.baseURL + "/v1/chat/completions"
	var resp ChatResponse
	err = retryWithBackoff(ctx, 3, func() error {
		result, err := doOpenAIRequest(ctx, o.client, url, "", payload)
		if err != nil {
			return err
		}
		resp = result
		return nil
	})
	return resp, err
}

// ListLocalModels queries the Ollama server for locally installed models.
// Used by the registry's availability probe.
func ListLocalModels(ctx context.Context, baseURL string) ([]string, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	url := normalizeOllamaURL(baseURL) + "/api/tags"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d)", httpResp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}
