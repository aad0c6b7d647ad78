package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewkit/reviewkit/internal/models"
)

const testConfig = `
models:
  gpt-4:
    provider: openai
    model_name: gpt-4
    temperature: 0.1
    max_tokens: 2048
    description: "OpenAI GPT-4"
  claude:
    provider: anthropic
    model_name: claude-sonnet-4-20250514
    temperature: 0.1
    max_tokens: 4096
    description: "Anthropic Claude"
    env_var: ANTHROPIC_API_KEY
  local-llama:
    provider: ollama
    model_name: llama3.2:3b
    temperature: 0.2
    max_tokens: 2048
    description: "Local Llama"
providers:
  openai:
    env_var: OPENAI_API_KEY
  ollama:
    base_url: http://localhost:11434
`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	return r
}

func TestLoad(t *testing.T) {
	r := loadTestRegistry(t)

	assert.Equal(t, []string{"claude", "gpt-4", "local-llama"}, r.IDs())

	cfg, ok := r.Get("gpt-4")
	require.True(t, ok)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.InDelta(t, 0.1, cfg.Temperature, 1e-9)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestLoad_MissingFileYieldsEmptyRegistry(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, r.IDs())
	assert.Empty(t, r.Available(context.Background()))
}

func TestAvailable_ChecksEnvAndOllama(t *testing.T) {
	r := loadTestRegistry(t)
	r.ollamaProbe = func(ctx context.Context, baseURL string) ([]string, error) {
		assert.Equal(t, "http://localhost:11434", baseURL)
		return []string{"llama3.2:3b"}, nil
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")

	avail := r.Available(context.Background())
	assert.Contains(t, avail, "gpt-4")
	assert.Contains(t, avail, "local-llama")
	assert.NotContains(t, avail, "claude")
	assert.Equal(t, "OpenAI GPT-4", avail["gpt-4"])
}

func TestAvailable_OllamaProbeFailure(t *testing.T) {
	r := loadTestRegistry(t)
	r.ollamaProbe = func(ctx context.Context, baseURL string) ([]string, error) {
		return nil, assert.AnError
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	assert.Empty(t, r.Available(context.Background()))
}

func TestClient_MemoizesPerModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	r := New(map[string]models.ModelConfig{
		"gpt-4": {Provider: "openai", ModelName: "gpt-4"},
	}, nil)

	c1, err := r.Client("gpt-4")
	require.NoError(t, err)
	c2, err := r.Client("gpt-4")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

func TestClient_UnknownModel(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Client("ghost")
	assert.ErrorContains(t, err, "not found in registry")
}

func TestClient_MissingCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	r := New(map[string]models.ModelConfig{
		"claude": {Provider: "anthropic", ModelName: "claude-sonnet-4-20250514"},
	}, nil)

	_, err := r.Client("claude")
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}
