// Package mcp exposes the code reviewer as MCP tools over stdio, so editor
// agents can request reviews and guideline searches directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/review"
)

// Server wraps the review stack and exposes it as MCP tools.
type Server struct {
	source      review.ModelSource
	reviewer    *review.Reviewer
	ragReviewer *rag.Reviewer
	knowledge   *kb.KnowledgeBase
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(source review.ModelSource, reviewer *review.Reviewer, ragReviewer *rag.Reviewer, knowledge *kb.KnowledgeBase) *Server {
	return &Server{
		source:      source,
		reviewer:    reviewer,
		ragReviewer: ragReviewer,
		knowledge:   knowledge,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("reviewkit", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.reviewCodeTool())
	srv.AddTool(s.ragReviewCodeTool())
	srv.AddTool(s.searchGuidelinesTool())
	srv.AddTool(s.knowledgeBaseStatsTool())
	srv.AddTool(s.listModelsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// resolveModel picks the requested model if given, else the first available.
func (s *Server) resolveModel(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	id, ok := review.FirstAvailable(ctx, s.source)
	if !ok {
		return "", fmt.Errorf("no models available; check API keys")
	}
	return id, nil
}

func toolResultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// review_code
func (s *Server) reviewCodeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_code",
		mcp.WithDescription("Review source code with an LLM. Returns a JSON review with rating (Excellent/Good/Fair/Poor), issues, suggestions, and reasoning."),
		mcp.WithString("code", mcp.Required(), mcp.Description("The source code to review")),
		mcp.WithString("language", mcp.Description("Programming language (default: python)")),
		mcp.WithString("technique", mcp.Description("Prompt technique: zero_shot, few_shot, or cot (default: zero_shot)")),
		mcp.WithString("model", mcp.Description("Model ID from the registry; defaults to the first available model")),
	)
	return tool, s.handleReviewCode
}

func (s *Server) handleReviewCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}
	language := request.GetString("language", "python")
	technique := models.Technique(request.GetString("technique", string(models.TechniqueZeroShot)))

	modelID, err := s.resolveModel(ctx, request.GetString("model", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.reviewer.Review(ctx, code, language, technique, modelID)
	return toolResultJSON(result)
}

// rag_review_code
func (s *Server) ragReviewCodeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rag_review_code",
		mcp.WithDescription("Review source code with guidelines retrieved from the knowledge base. Falls back to a plain review when no guidelines match."),
		mcp.WithString("code", mcp.Required(), mcp.Description("The source code to review")),
		mcp.WithString("language", mcp.Description("Programming language (default: python)")),
		mcp.WithString("model", mcp.Description("Model ID from the registry; defaults to the first available model")),
		mcp.WithNumber("guidelines", mcp.Description("Number of guidelines to retrieve (default: 3)")),
	)
	return tool, s.handleRAGReviewCode
}

func (s *Server) handleRAGReviewCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}
	language := request.GetString("language", "python")
	guidelines := request.GetInt("guidelines", 0)

	modelID, err := s.resolveModel(ctx, request.GetString("model", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.ragReviewer.Review(ctx, code, language, modelID, guidelines)
	return toolResultJSON(result)
}

// search_guidelines
func (s *Server) searchGuidelinesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("search_guidelines",
		mcp.WithDescription("Search the coding guidelines knowledge base. Returns matching guideline chunks with title, category, source, and similarity score."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to search for")),
		mcp.WithString("category", mcp.Description("Category filter, e.g. security or performance")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default: 5)")),
	)
	return tool, s.handleSearchGuidelines
}

func (s *Server) handleSearchGuidelines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	category := request.GetString("category", "")
	limit := request.GetInt("limit", 0)

	hits, err := s.ragReviewer.SearchGuidelines(ctx, query, category, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search guidelines: %v", err)), nil
	}
	return toolResultJSON(map[string]any{
		"query":      query,
		"category":   category,
		"count":      len(hits),
		"guidelines": hits,
	})
}

// knowledge_base_stats
func (s *Server) knowledgeBaseStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("knowledge_base_stats",
		mcp.WithDescription("Get knowledge base statistics: total chunk count and chunks per category."),
	)
	return tool, s.handleKnowledgeBaseStats
}

func (s *Server) handleKnowledgeBaseStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.knowledge.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get knowledge base stats: %v", err)), nil
	}
	return toolResultJSON(stats)
}

// list_models
func (s *Server) listModelsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_models",
		mcp.WithDescription("List AI models that are currently available (configured with credentials or reachable locally)."),
	)
	return tool, s.handleListModels
}

func (s *Server) handleListModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	available := s.source.Available(ctx)
	return toolResultJSON(map[string]any{
		"models": available,
		"count":  len(available),
	})
}
