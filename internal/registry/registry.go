// Package registry loads the model catalog from models.yaml and hands out
// lazily constructed provider clients for the models whose credentials are
// present in the environment.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/provider"
)

// fileConfig is the on-disk shape of models.yaml.
type fileConfig struct {
	Models    map[string]models.ModelConfig    `yaml:"models"`
	Providers map[string]models.ProviderConfig `yaml:"providers"`
}

// Registry maps model IDs to configurations and memoized provider clients.
// Configuration is read once at construction and read-only afterward.
type Registry struct {
	models    map[string]models.ModelConfig
	providers map[string]models.ProviderConfig

	mu      sync.Mutex
	clients map[string]provider.Provider

	// ollamaProbe lists locally installed Ollama models; replaceable in tests.
	ollamaProbe func(ctx context.Context, baseURL string) ([]string, error)
}

// Load reads models.yaml from path. A missing file yields an empty registry
// rather than an error, so credential-free commands still work.
func Load(path string) (*Registry, error) {
	r := &Registry{
		models:      map[string]models.ModelConfig{},
		providers:   map[string]models.ProviderConfig{},
		clients:     map[string]provider.Provider{},
		ollamaProbe: provider.ListLocalModels,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("model config not found, starting with empty registry", "path", path)
			return r, nil
		}
		return nil, fmt.Errorf("read model config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	if cfg.Models != nil {
		r.models = cfg.Models
	}
	if cfg.Providers != nil {
		r.providers = cfg.Providers
	}

	slog.Info("loaded model registry", "models", len(r.models))
	return r, nil
}

// New builds a registry directly from configuration maps. Used by tests and
// by callers that embed their own catalog.
func New(mc map[string]models.ModelConfig, pc map[string]models.ProviderConfig) *Registry {
	if mc == nil {
		mc = map[string]models.ModelConfig{}
	}
	if pc == nil {
		pc = map[string]models.ProviderConfig{}
	}
	return &Registry{
		models:      mc,
		providers:   pc,
		clients:     map[string]provider.Provider{},
		ollamaProbe: provider.ListLocalModels,
	}
}

// Get returns the configuration for a model ID.
func (r *Registry) Get(id string) (models.ModelConfig, bool) {
	cfg, ok := r.models[id]
	return cfg, ok
}

// IDs returns all configured model IDs, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Available returns the IDs and descriptions of models that can actually be
// called right now: their credential env var is set, or for Ollama the model
// is installed locally.
func (r *Registry) Available(ctx context.Context) map[string]string {
	out := map[string]string{}
	var ollamaModels []string
	ollamaProbed := false

	for _, id := range r.IDs() {
		cfg := r.models[id]

		if cfg.Provider == "ollama" {
			if !ollamaProbed {
				ollamaProbed = true
				names, err := r.ollamaProbe(ctx, r.providers["ollama"].BaseURL)
				if err != nil {
					slog.Debug("ollama probe failed", "error", err)
				}
				ollamaModels = names
			}
			if slices.Contains(ollamaModels, cfg.ModelName) {
				out[id] = cfg.Description
			}
			continue
		}

		envVar := cfg.EnvVar
		if envVar == "" {
			envVar = r.providers[cfg.Provider].EnvVar
		}
		if envVar == "" || os.Getenv(envVar) != "" {
			out[id] = cfg.Description
		}
	}
	return out
}

// AvailableIDs returns the sorted IDs of available models.
func (r *Registry) AvailableIDs(ctx context.Context) []string {
	avail := r.Available(ctx)
	ids := make([]string, 0, len(avail))
	for id := range avail {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Client returns a provider client for the model, constructing and caching
// it on first use.
func (r *Registry) Client(id string) (provider.Provider, error) {
	cfg, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("model %s not found in registry", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		return c, nil
	}

	c, err := provider.New(cfg, r.providers[cfg.Provider])
	if err != nil {
		return nil, fmt.Errorf("create %s client for %s: %w", cfg.Provider, id, err)
	}
	r.clients[id] = c
	return c, nil
}

// Embedder returns the embedding client for the knowledge base. OpenAI is
// preferred when a key is present; otherwise a local Ollama embedder is used.
func (r *Registry) Embedder() provider.Embedder {
	if os.Getenv("OPENAI_API_KEY") != "" {
		e, err := provider.NewOpenAIEmbedder("")
		if err == nil {
			return e
		}
	}
	return provider.NewOllamaEmbedder("", r.providers["ollama"].BaseURL)
}
