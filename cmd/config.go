package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "reviewkit"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage reviewkit configuration.

Running bare 'reviewkit config' is the same as 'reviewkit config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# reviewkit configuration
# See: reviewkit config show (for effective values and sources)

# SQLite knowledge base path (default: ~/.config/reviewkit/reviewkit.db)
# db_path: {{ .DBPath }}

# Model catalog path (default: models.yaml in the working directory)
# models_config: {{ .ModelsConfig }}

# Directory of example files served by the HTTP API
# examples_dir: {{ .ExamplesDir }}

# HTTP API port
# port: {{ .Port }}

# Log level: debug, info, warn, or error
# log_level: {{ .LogLevel }}

# Review defaults
review:
  # Language assumed when none is given (default: "python")
  language: "{{ .ReviewLanguage }}"

  # Prompt technique: zero_shot, few_shot, or cot (default: "zero_shot")
  technique: "{{ .ReviewTechnique }}"

# RAG settings
rag:
  # Guidelines retrieved per review (default: 5)
  num_guidelines: {{ .RAGNumGuidelines }}

# Agent settings
agent:
  # Reasoning iteration cap (default: 5)
  max_iterations: {{ .AgentMaxIterations }}
`

type configTemplateData struct {
	DBPath             string
	ModelsConfig       string
	ExamplesDir        string
	Port               int
	LogLevel           string
	ReviewLanguage     string
	ReviewTechnique    string
	RAGNumGuidelines   int
	AgentMaxIterations int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DBPath:             viper.GetString("db_path"),
		ModelsConfig:       viper.GetString("models_config"),
		ExamplesDir:        viper.GetString("examples_dir"),
		Port:               viper.GetInt("port"),
		LogLevel:           viper.GetString("log_level"),
		ReviewLanguage:     viper.GetString("review.language"),
		ReviewTechnique:    viper.GetString("review.technique"),
		RAGNumGuidelines:   viper.GetInt("rag.num_guidelines"),
		AgentMaxIterations: viper.GetInt("agent.max_iterations"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "db_path", EnvVar: "REVIEWKIT_DB_PATH"},
	{Key: "models_config", EnvVar: "REVIEWKIT_MODELS_CONFIG"},
	{Key: "examples_dir", EnvVar: "REVIEWKIT_EXAMPLES_DIR"},
	{Key: "port", EnvVar: "REVIEWKIT_PORT"},
	{Key: "log_level", EnvVar: "REVIEWKIT_LOG_LEVEL"},
	{Key: "review.language", EnvVar: "REVIEWKIT_REVIEW_LANGUAGE"},
	{Key: "review.technique", EnvVar: "REVIEWKIT_REVIEW_TECHNIQUE"},
	{Key: "rag.num_guidelines", EnvVar: "REVIEWKIT_RAG_NUM_GUIDELINES"},
	{Key: "agent.max_iterations", EnvVar: "REVIEWKIT_AGENT_MAX_ITERATIONS"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'reviewkit config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
