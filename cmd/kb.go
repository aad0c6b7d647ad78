package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/output"
)

var (
	kbSearchCategory string
	kbSearchLimit    int
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the guideline knowledge base",
	Long: `Manage the knowledge base of coding guidelines used for RAG reviews.

Running bare 'reviewkit kb' is the same as 'reviewkit kb stats'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return kbStatsRun(cmd)
	},
}

var kbIngestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load guideline documents into the knowledge base",
	Long: `Chunk and embed guideline documents into the knowledge base.

Without arguments, ingests the built-in guideline corpus. With a
directory argument, ingests the markdown files found there.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := getKnowledge()
		if err != nil {
			return err
		}

		n, err := k.Ingest(cmd.Context(), corpusArg(args))
		if err != nil {
			return fmt.Errorf("ingest guidelines: %w", err)
		}
		ui.Success("Ingested %d guideline chunks", n)
		return nil
	},
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search guidelines by semantic similarity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ragReviewer, err := getRAGReviewer()
		if err != nil {
			return err
		}

		guidelines, err := ragReviewer.SearchGuidelines(cmd.Context(), args[0], kbSearchCategory, kbSearchLimit)
		if err != nil {
			return fmt.Errorf("search guidelines: %w", err)
		}
		if len(guidelines) == 0 {
			ui.Info("No matching guidelines found.")
			return nil
		}

		for i, g := range guidelines {
			fmt.Fprintf(ui.Out, "%s %s (%s, score %.3f)\n", output.Cyan(fmt.Sprintf("%d.", i+1)), g.Title, g.Category, g.Score)
			fmt.Fprintf(ui.Out, "   %s\n\n", g.Content)
		}
		return nil
	},
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return kbStatsRun(cmd)
	},
}

var kbRefreshCmd = &cobra.Command{
	Use:   "refresh [dir]",
	Short: "Clear and re-ingest the knowledge base",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := getKnowledge()
		if err != nil {
			return err
		}

		n, err := k.Refresh(cmd.Context(), corpusArg(args))
		if err != nil {
			return fmt.Errorf("refresh knowledge base: %w", err)
		}
		ui.Success("Knowledge base refreshed with %d chunks", n)
		return nil
	},
}

func init() {
	kbSearchCmd.Flags().StringVar(&kbSearchCategory, "category", "", "Filter by guideline category")
	kbSearchCmd.Flags().IntVar(&kbSearchLimit, "limit", 5, "Maximum number of results")

	kbCmd.AddCommand(kbIngestCmd)
	kbCmd.AddCommand(kbSearchCmd)
	kbCmd.AddCommand(kbStatsCmd)
	kbCmd.AddCommand(kbRefreshCmd)
	rootCmd.AddCommand(kbCmd)
}

// corpusArg returns the document source: a directory given on the command
// line, or the embedded guideline corpus.
func corpusArg(args []string) fs.FS {
	if len(args) == 1 {
		return os.DirFS(args[0])
	}
	return kb.DefaultCorpus()
}

func kbStatsRun(cmd *cobra.Command) error {
	k, err := getKnowledge()
	if err != nil {
		return err
	}

	stats, err := k.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("knowledge base stats: %w", err)
	}

	ui.Info("Total chunks: %d", stats.TotalChunks)
	if len(stats.Categories) == 0 {
		ui.Info("Knowledge base is empty. Run 'reviewkit kb ingest' to seed it.")
		return nil
	}

	categories := make([]string, 0, len(stats.Categories))
	for c := range stats.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	table := ui.Table([]string{"Category", "Chunks"})
	for _, c := range categories {
		table.Append([]string{c, fmt.Sprintf("%d", stats.Categories[c])})
	}
	table.Render()
	return nil
}
