package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/review"
)

var (
	reviewCode       string
	reviewLanguage   string
	reviewTechnique  string
	reviewModel      string
	reviewRAG        bool
	reviewGuidelines int
)

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review a source file or inline code",
	Long: `Review source code with an AI model.

Pass a file path, or inline code with --code. The language is inferred
from the file extension and can be overridden with --language.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		code, language, err := resolveCode(args)
		if err != nil {
			return err
		}

		r, err := getRegistry()
		if err != nil {
			return err
		}

		modelID, err := resolveModelID(cmd, reviewModel)
		if err != nil {
			return err
		}

		if reviewRAG {
			ragReviewer, err := getRAGReviewer()
			if err != nil {
				return err
			}
			n := reviewGuidelines
			if n <= 0 {
				n = viper.GetInt("rag.num_guidelines")
			}
			result := ragReviewer.Review(ctx, code, language, modelID, n)
			ui.ReviewResult(result)
			return nil
		}

		if reviewTechnique == "" {
			reviewTechnique = viper.GetString("review.technique")
		}
		technique := models.Technique(reviewTechnique)
		if !validTechnique(technique) {
			return fmt.Errorf("unknown technique %q (valid: %v)", reviewTechnique, models.Techniques())
		}

		result := review.New(r).Review(ctx, code, language, technique, modelID)
		ui.ReviewResult(result)
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewCode, "code", "", "Inline code to review instead of a file")
	reviewCmd.Flags().StringVarP(&reviewLanguage, "language", "l", "", "Language of the code (default: inferred from extension)")
	reviewCmd.Flags().StringVarP(&reviewTechnique, "technique", "t", "", "Prompt technique: zero_shot, few_shot, or cot")
	reviewCmd.Flags().StringVarP(&reviewModel, "model", "m", "", "Model ID (default: first available)")
	reviewCmd.Flags().BoolVar(&reviewRAG, "rag", false, "Use RAG-enhanced review with the guideline knowledge base")
	reviewCmd.Flags().IntVar(&reviewGuidelines, "guidelines", 0, "Number of guidelines to retrieve for RAG (default from config)")
	rootCmd.AddCommand(reviewCmd)
}

// resolveCode returns the code under review and its language, from either a
// file argument or the --code flag.
func resolveCode(args []string) (code, language string, err error) {
	language = reviewLanguage

	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", args[0], err)
		}
		if language == "" {
			language = languageForExt(filepath.Ext(args[0]))
		}
		return string(data), language, nil
	}

	if reviewCode == "" {
		return "", "", fmt.Errorf("provide a file path or --code")
	}
	if language == "" {
		language = viper.GetString("review.language")
	}
	return reviewCode, language, nil
}

// resolveModelID picks the model to use: the explicit flag value, or the
// first available model when none is given.
func resolveModelID(cmd *cobra.Command, requested string) (string, error) {
	r, err := getRegistry()
	if err != nil {
		return "", err
	}

	if requested != "" {
		avail := r.Available(cmd.Context())
		if _, ok := avail[requested]; !ok {
			return "", fmt.Errorf("model %s not available (run 'reviewkit models')", requested)
		}
		return requested, nil
	}

	id, ok := review.FirstAvailable(cmd.Context(), r)
	if !ok {
		return "", fmt.Errorf("no AI models available, check your API keys")
	}
	return id, nil
}

func validTechnique(t models.Technique) bool {
	for _, known := range models.Techniques() {
		if t == known {
			return true
		}
	}
	return false
}

// languageForExt maps a file extension to the language name used in prompts.
func languageForExt(ext string) string {
	switch ext {
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".c":
		return "c"
	case ".cpp", ".cc":
		return "cpp"
	default:
		return viper.GetString("review.language")
	}
}
