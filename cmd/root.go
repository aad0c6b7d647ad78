package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reviewkit/reviewkit/internal/agent"
	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/output"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/registry"
	"github.com/reviewkit/reviewkit/internal/review"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui  *output.UI
	reg *registry.Registry

	knowledge *kb.KnowledgeBase

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "reviewkit",
	Short: "AI code review - multiple models, prompt techniques, RAG, and an agent",
	Long: `reviewkit reviews source code with hosted and local LLMs.
It supports several prompt techniques, RAG over a guideline knowledge
base, multi-model comparison, an agentic review workflow, an HTTP API,
and an MCP server for editor integration.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/reviewkit/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "reviewkit")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("REVIEWKIT")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "reviewkit")

	viper.SetDefault("log_level", "warn")
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "reviewkit.db"))
	viper.SetDefault("models_config", "models.yaml")
	viper.SetDefault("examples_dir", "examples")
	viper.SetDefault("port", 5000)
	viper.SetDefault("review.language", "python")
	viper.SetDefault("review.technique", "zero_shot")
	viper.SetDefault("rag.num_guidelines", 5)
	viper.SetDefault("agent.max_iterations", 5)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	level := logLevel(viper.GetString("log_level"))
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Registry and knowledge base are initialized lazily — only when
	// commands actually need them. This allows config/version commands
	// to run without models.yaml or a db.
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// getRegistry returns the shared model registry, loading it on first call.
func getRegistry() (*registry.Registry, error) {
	if reg != nil {
		return reg, nil
	}

	r, err := registry.Load(viper.GetString("models_config"))
	if err != nil {
		return nil, fmt.Errorf("load model config: %w", err)
	}

	reg = r
	return reg, nil
}

// getKnowledge returns the shared knowledge base, opening the chunk store
// on first call.
func getKnowledge() (*kb.KnowledgeBase, error) {
	if knowledge != nil {
		return knowledge, nil
	}

	r, err := getRegistry()
	if err != nil {
		return nil, err
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s, err := kb.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate knowledge base: %w", err)
	}

	knowledge = kb.New(s, r.Embedder())
	return knowledge, nil
}

// getRAGReviewer wires the RAG reviewer on top of the shared registry and
// knowledge base.
func getRAGReviewer() (*rag.Reviewer, error) {
	r, err := getRegistry()
	if err != nil {
		return nil, err
	}
	k, err := getKnowledge()
	if err != nil {
		return nil, err
	}
	return rag.New(r, k, review.New(r)), nil
}

// getAgent wires the review agent with its full toolbox.
func getAgent() (*agent.Agent, error) {
	r, err := getRegistry()
	if err != nil {
		return nil, err
	}
	k, err := getKnowledge()
	if err != nil {
		return nil, err
	}
	reviewer := review.New(r)
	ragReviewer := rag.New(r, k, reviewer)
	return agent.New(r, agent.NewToolbox(reviewer, ragReviewer, k)), nil
}
