package cmd

import (
	"github.com/spf13/cobra"

	"github.com/reviewkit/reviewkit/internal/mcp"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/review"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for editor integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients call the reviewer natively. Configure with:

  {
    "mcpServers": {
      "reviewkit": { "command": "reviewkit", "args": ["mcp"] }
    }
  }

Available tools: review_code, rag_review_code, search_guidelines,
knowledge_base_stats, list_models`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := getRegistry()
		if err != nil {
			return err
		}
		k, err := getKnowledge()
		if err != nil {
			return err
		}

		reviewer := review.New(r)
		s := mcp.NewServer(r, reviewer, rag.New(r, k, reviewer), k)
		return s.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
