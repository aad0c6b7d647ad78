package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reviewkit/reviewkit/internal/api"
	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/review"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the code review HTTP API",
	Long: `Start the HTTP API server.
By default it listens on port 5000. Use --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		r, err := getRegistry()
		if err != nil {
			return err
		}
		k, err := getKnowledge()
		if err != nil {
			return err
		}

		// Seed the knowledge base from the embedded guideline corpus on
		// first run, so RAG endpoints work out of the box.
		if k.Empty(ctx) {
			if n, err := k.Ingest(ctx, kb.DefaultCorpus()); err != nil {
				ui.Warning("Knowledge base ingestion failed: %v", err)
			} else {
				ui.VerboseLog("Ingested %d guideline chunks", n)
			}
		}

		reviewer := review.New(r)
		ragReviewer := rag.New(r, k, reviewer)
		reviewAgent, err := getAgent()
		if err != nil {
			return err
		}

		srv := api.NewServer(r, reviewer, ragReviewer, k, reviewAgent, viper.GetString("examples_dir"), kb.DefaultCorpus())

		port := viper.GetInt("port")
		addr := fmt.Sprintf(":%d", port)
		ui.Info("Serving code review API at http://localhost%s", addr)
		return http.ListenAndServe(addr, srv.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 5000, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
