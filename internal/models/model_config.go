package models

// ModelConfig describes a single reviewable model from models.yaml.
// Loaded once at startup and read-only afterward.
type ModelConfig struct {
	Provider    string  `yaml:"provider" json:"provider"`
	ModelName   string  `yaml:"model_name" json:"model_name"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Description string  `yaml:"description" json:"description"`
	EnvVar      string  `yaml:"env_var,omitempty" json:"env_var,omitempty"`
}

// ProviderConfig holds per-provider defaults shared by its models.
type ProviderConfig struct {
	EnvVar  string `yaml:"env_var,omitempty" json:"env_var,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}
