package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/reviewkit/reviewkit/internal/models"
)

// Anthropic wraps the official Anthropic SDK.
type Anthropic struct {
	api         *anthropic.Client
	model       anthropic.Model
	temperature float64
	maxTokens   int
}

// NewAnthropic creates an Anthropic provider from the model config.
// The API key is read from ANTHROPIC_API_KEY (or the configured env var).
func NewAnthropic(cfg models.ModelConfig) (*Anthropic, error) {
	envVar := cfg.EnvVar
	if envVar == "" {
		envVar = "ANTHROPIC_API_KEY"
	}
	key := os.Getenv(envVar)
	if key == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envVar)
	}

	client := anthropic.NewClient(option.WithAPIKey(key))
	return &Anthropic{
		api:         &client,
		model:       anthropic.Model(cfg.ModelName),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

// Chat sends a system+user prompt pair and returns the concatenated text blocks.
func (a *Anthropic) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if temp := pickTemperature(req.Temperature, a.temperature); temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}

	msg, err := a.api.Messages.New(ctx, params)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return ChatResponse{}, fmt.Errorf("no text content in API response")
	}

	return ChatResponse{
		Content:    text,
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

// pickTemperature prefers the per-request value over the model default.
func pickTemperature(req, def float64) float64 {
	if req > 0 {
		return req
	}
	return def
}
