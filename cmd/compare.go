package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/output"
	"github.com/reviewkit/reviewkit/internal/review"
)

var compareRAG bool

var compareCmd = &cobra.Command{
	Use:   "compare [file]",
	Short: "Compare reviews across models or approaches",
	Long: `Run the same review against every available model and compare results.

With --rag, instead compares a RAG-enhanced review against a traditional
one on a single model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		code, language, err := resolveCode(args)
		if err != nil {
			return err
		}

		if compareRAG {
			modelID, err := resolveModelID(cmd, reviewModel)
			if err != nil {
				return err
			}
			ragReviewer, err := getRAGReviewer()
			if err != nil {
				return err
			}

			c := ragReviewer.CompareWithTraditional(ctx, code, language, modelID)
			ui.Info("Traditional review:")
			ui.ReviewResult(c.Traditional)
			fmt.Fprintln(ui.Out)
			ui.Info("RAG-enhanced review:")
			ui.ReviewResult(c.RAGEnhanced)
			fmt.Fprintln(ui.Out)
			ui.Info("Delta: %+d issues, %+d suggestions, %d guidelines referenced",
				c.Delta.AdditionalIssuesFound, c.Delta.AdditionalSuggestions, c.Delta.GuidelinesReferenced)
			return nil
		}

		r, err := getRegistry()
		if err != nil {
			return err
		}

		if reviewTechnique == "" {
			reviewTechnique = viper.GetString("review.technique")
		}
		technique := models.Technique(reviewTechnique)
		if !validTechnique(technique) {
			return fmt.Errorf("unknown technique %q (valid: %v)", reviewTechnique, models.Techniques())
		}

		results := review.New(r).Compare(ctx, code, language, technique)
		if len(results) == 0 {
			return fmt.Errorf("no AI models available, check your API keys")
		}

		ids := make([]string, 0, len(results))
		for id := range results {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		table := ui.Table([]string{"Model", "Rating", "Issues", "Suggestions", "Time"})
		for _, id := range ids {
			res := results[id]
			table.Append([]string{
				output.Cyan(id),
				output.RatingColor(res.Rating),
				fmt.Sprintf("%d", len(res.Issues)),
				fmt.Sprintf("%d", len(res.Suggestions)),
				fmt.Sprintf("%.2fs", res.ExecutionTime),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&reviewCode, "code", "", "Inline code to review instead of a file")
	compareCmd.Flags().StringVarP(&reviewLanguage, "language", "l", "", "Language of the code (default: inferred from extension)")
	compareCmd.Flags().StringVarP(&reviewTechnique, "technique", "t", "", "Prompt technique: zero_shot, few_shot, or cot")
	compareCmd.Flags().StringVarP(&reviewModel, "model", "m", "", "Model ID for --rag comparison")
	compareCmd.Flags().BoolVar(&compareRAG, "rag", false, "Compare RAG-enhanced vs traditional on one model")
	rootCmd.AddCommand(compareCmd)
}
