package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/reviewkit/reviewkit/internal/models"
)

const huggingFaceAPIURL = "https://api-inference.huggingface.co/models"

// HuggingFace calls the hosted Inference API for a given model repo.
type HuggingFace struct {
	token       string
	repoID      string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewHuggingFace creates a HuggingFace provider. The token is read from
// HUGGINGFACE_API_TOKEN (or the configured env var).
func NewHuggingFace(cfg models.ModelConfig) (*HuggingFace, error) {
	envVar := cfg.EnvVar
	if envVar == "" {
		envVar = "HUGGINGFACE_API_TOKEN"
	}
	token := os.Getenv(envVar)
	if token == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envVar)
	}
	return &HuggingFace{
		token:       token,
		repoID:      cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      httpClient(),
	}, nil
}

func (h *HuggingFace) Name() string { return "huggingface" }

func (h *HuggingFace) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	url := fmt.Sprintf("%s/%s", huggingFaceAPIURL, h.repoID)
	return h.chatAt(ctx, url, req)
}

func (h *HuggingFace) chatAt(ctx context.Context, url string, req ChatRequest) (ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = h.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	// The inference API takes a single text input; fold the system prompt in.
	input := req.UserPrompt
	if req.SystemPrompt != "" {
		input = req.SystemPrompt + "\n\n" + req.UserPrompt
	}

	body := hfRequest{
		Inputs: input,
		Parameters: hfParameters{
			MaxNewTokens:   maxTokens,
			ReturnFullText: false,
		},
	}
	if temp := pickTemperature(req.Temperature, h.temperature); temp > 0 {
		body.Parameters.Temperature = &temp
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	var resp ChatResponse
	err = retryWithBackoff(ctx, 3, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+h.token)

		httpResp, err := h.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests:
			return &rateLimitError{}
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return &authError{message: string(respBody)}
		case httpResp.StatusCode >= 500:
			// 503 also means the model is still loading; retrying helps.
			return &serverError{statusCode: httpResp.StatusCode, body: string(respBody)}
		case httpResp.StatusCode != http.StatusOK:
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
		}

		var result []hfGeneration
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if len(result) == 0 || result[0].GeneratedText == "" {
			return fmt.Errorf("no generated text in response")
		}

		resp = ChatResponse{Content: result[0].GeneratedText}
		return nil
	})
	return resp, err
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}
