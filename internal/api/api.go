// Package api exposes the code review service over HTTP. All responses share
// the {"success": ...} envelope; model-call failures surface as Error-rated
// review results with HTTP 200, never as transport errors.
package api

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/reviewkit/reviewkit/internal/agent"
	"github.com/reviewkit/reviewkit/internal/kb"
	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/rag"
	"github.com/reviewkit/reviewkit/internal/review"
)

const (
	serviceName    = "ReviewKit Code Review API"
	serviceVersion = "1.0.0"

	defaultTechnique = models.TechniqueZeroShot
	defaultLanguage  = "python"
)

// Server provides the REST API handlers.
type Server struct {
	source      review.ModelSource
	reviewer    *review.Reviewer
	ragReviewer *rag.Reviewer
	knowledge   *kb.KnowledgeBase
	agent       *agent.Agent
	examplesDir string
	corpus      fs.FS
}

// NewServer creates a new API server. corpus is the document set used by the
// knowledge-base refresh endpoint.
func NewServer(source review.ModelSource, reviewer *review.Reviewer, ragReviewer *rag.Reviewer, knowledge *kb.KnowledgeBase, reviewAgent *agent.Agent, examplesDir string, corpus fs.FS) *Server {
	return &Server{
		source:      source,
		reviewer:    reviewer,
		ragReviewer: ragReviewer,
		knowledge:   knowledge,
		agent:       reviewAgent,
		examplesDir: examplesDir,
		corpus:      corpus,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.home)
	mux.HandleFunc("GET /models", s.listModels)
	mux.HandleFunc("GET /files", s.listFiles)

	mux.HandleFunc("GET /review/{filename}", s.reviewFile)
	mux.HandleFunc("POST /review/{filename}", s.reviewFile)
	mux.HandleFunc("GET /review-all", s.reviewAll)
	mux.HandleFunc("POST /review-all", s.reviewAll)
	mux.HandleFunc("POST /review-custom", s.reviewCustom)
	mux.HandleFunc("POST /compare-models", s.compareModels)

	mux.HandleFunc("GET /rag/review/{filename}", s.ragReviewFile)
	mux.HandleFunc("POST /rag/review/{filename}", s.ragReviewFile)
	mux.HandleFunc("POST /rag/review-custom", s.ragReviewCustom)
	mux.HandleFunc("POST /rag/compare", s.ragCompare)
	mux.HandleFunc("POST /rag/search-guidelines", s.searchGuidelines)
	mux.HandleFunc("GET /rag/knowledge-base/stats", s.knowledgeBaseStats)
	mux.HandleFunc("POST /rag/knowledge-base/refresh", s.refreshKnowledgeBase)

	mux.HandleFunc("GET /agent/info", s.agentInfo)
	mux.HandleFunc("POST /agent/review", s.agentReview)
	mux.HandleFunc("GET /agent/review/{filename}", s.agentReviewFile)
	mux.HandleFunc("POST /agent/review/{filename}", s.agentReviewFile)

	return corsMiddleware(logMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// decodeBody parses the JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "JSON body required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "JSON body required")
		return false
	}
	return true
}

// resolveModel picks the model to use: the requested one if available, else
// the first available. Writes 503 when no model is configured and 400 when
// the requested model is unknown.
func (s *Server) resolveModel(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	available := s.source.Available(r.Context())
	if len(available) == 0 {
		writeError(w, http.StatusServiceUnavailable, "No AI models available. Please check your API keys.")
		return "", false
	}
	if requested == "" {
		id, _ := review.FirstAvailable(r.Context(), s.source)
		return id, true
	}
	if _, ok := available[requested]; !ok {
		ids := make([]string, 0, len(available))
		for id := range available {
			ids = append(ids, id)
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":          false,
			"error":            "Model " + requested + " not available",
			"available_models": ids,
		})
		return "", false
	}
	return requested, true
}

// --- Service info ---

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	files, _ := s.availableFiles()
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"status":  "running",
		"endpoints": map[string]string{
			"/":                           "API information and health check",
			"/models":                     "List available AI models",
			"/files":                      "List available example files",
			"/review/{filename}":          "Review specific file from examples",
			"/review-all":                 "Review all files in examples directory",
			"/review-custom":              "Review custom code (POST)",
			"/compare-models":             "Review the same code with every available model (POST)",
			"/rag/review/{filename}":      "RAG-enhanced file review",
			"/rag/review-custom":          "RAG-enhanced custom code review (POST)",
			"/rag/compare":                "Compare RAG vs traditional review (POST)",
			"/rag/search-guidelines":      "Search coding guidelines (POST)",
			"/rag/knowledge-base/stats":   "Get knowledge base statistics",
			"/rag/knowledge-base/refresh": "Refresh knowledge base (POST)",
			"/agent/info":                 "Get AI agent capabilities and information",
			"/agent/review":               "AI agent autonomous code review (POST)",
			"/agent/review/{filename}":    "AI agent review of file from examples",
		},
		"available_models":   len(s.source.Available(r.Context())),
		"available_files":    len(files),
		"examples_directory": s.examplesDir,
	})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	available := s.source.Available(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"models":  available,
		"count":   len(available),
	})
}

// --- Traditional reviews ---

// fileReviewResponse flattens a review result with file metadata.
type fileReviewResponse struct {
	Success bool `json:"success"`
	*models.ReviewResult
	Filename  string `json:"filename,omitempty"`
	FileSize  int    `json:"file_size,omitempty"`
	FileLines int    `json:"file_lines,omitempty"`
	CodeSize  int    `json:"code_size,omitempty"`
	CodeLines int    `json:"code_lines,omitempty"`
}

func (s *Server) reviewFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	technique := queryTechnique(r)
	language := queryDefault(r, "language", defaultLanguage)

	content, ok := s.readExample(w, filename)
	if !ok {
		return
	}
	modelID, ok := s.resolveModel(w, r, r.URL.Query().Get("model"))
	if !ok {
		return
	}

	result := s.reviewer.Review(r.Context(), content, language, technique, modelID)
	writeJSON(w, http.StatusOK, fileReviewResponse{
		Success:      true,
		ReviewResult: result,
		Filename:     filename,
		FileSize:     len(content),
		FileLines:    countLines(content),
	})
}

func (s *Server) reviewAll(w http.ResponseWriter, r *http.Request) {
	technique := queryTechnique(r)
	language := queryDefault(r, "language", defaultLanguage)

	files, err := s.availableFiles()
	if err != nil || len(files) == 0 {
		writeError(w, http.StatusNotFound, "No example files found in "+s.examplesDir)
		return
	}
	modelID, ok := s.resolveModel(w, r, r.URL.Query().Get("model"))
	if !ok {
		return
	}

	start := time.Now()
	results := make([]fileReviewResponse, 0, len(files))
	succeeded := 0
	totalIssues := 0
	for _, filename := range files {
		content, err := s.readFile(filename)
		if err != nil {
			slog.Warn("skipping unreadable example", "file", filename, "error", err)
			continue
		}
		result := s.reviewer.Review(r.Context(), content, language, technique, modelID)
		if !result.IsError() {
			succeeded++
			totalIssues += len(result.Issues)
		}
		results = append(results, fileReviewResponse{
			Success:      !result.IsError(),
			ReviewResult: result,
			Filename:     filename,
			FileSize:     len(content),
			FileLines:    countLines(content),
		})
	}
	elapsed := time.Since(start).Seconds()

	average := 0.0
	if len(results) > 0 {
		average = elapsed / float64(len(results))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": map[string]any{
			"total_files":           len(files),
			"successful_reviews":    succeeded,
			"failed_reviews":        len(results) - succeeded,
			"total_execution_time":  elapsed,
			"average_time_per_file": average,
			"total_issues":          totalIssues,
			"model_used":            modelID,
			"technique_used":        technique,
		},
		"results":   results,
		"timestamp": time.Now(),
	})
}

// customReviewRequest is the body for the custom review endpoints.
type customReviewRequest struct {
	Code       string `json:"code"`
	Language   string `json:"language"`
	Technique  string `json:"technique"`
	Model      string `json:"model"`
	Guidelines int    `json:"guidelines"`
}

func (s *Server) reviewCustom(w http.ResponseWriter, r *http.Request) {
	var req customReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Code content is required")
		return
	}
	technique := defaultTechnique
	if req.Technique != "" {
		technique = models.Technique(req.Technique)
	}
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}
	modelID, ok := s.resolveModel(w, r, req.Model)
	if !ok {
		return
	}

	result := s.reviewer.Review(r.Context(), req.Code, language, technique, modelID)
	writeJSON(w, http.StatusOK, fileReviewResponse{
		Success:      true,
		ReviewResult: result,
		CodeSize:     len(req.Code),
		CodeLines:    countLines(req.Code),
	})
}

func (s *Server) compareModels(w http.ResponseWriter, r *http.Request) {
	var req customReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Code content is required")
		return
	}
	if len(s.source.Available(r.Context())) == 0 {
		writeError(w, http.StatusServiceUnavailable, "No AI models available. Please check your API keys.")
		return
	}
	technique := defaultTechnique
	if req.Technique != "" {
		technique = models.Technique(req.Technique)
	}
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}

	results := s.reviewer.Compare(r.Context(), req.Code, language, technique)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"results":   results,
		"count":     len(results),
		"timestamp": time.Now(),
	})
}

// --- RAG endpoints ---

func (s *Server) ragReviewFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	language := queryDefault(r, "language", defaultLanguage)
	numGuidelines := queryInt(r, "guidelines", 0)

	content, ok := s.readExample(w, filename)
	if !ok {
		return
	}
	modelID, ok := s.resolveModel(w, r, r.URL.Query().Get("model"))
	if !ok {
		return
	}

	result := s.ragReviewer.Review(r.Context(), content, language, modelID, numGuidelines)
	writeJSON(w, http.StatusOK, fileReviewResponse{
		Success:      true,
		ReviewResult: result,
		Filename:     filename,
		CodeSize:     len(content),
		CodeLines:    countLines(content),
	})
}

func (s *Server) ragReviewCustom(w http.ResponseWriter, r *http.Request) {
	var req customReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Code content is required")
		return
	}
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}
	modelID, ok := s.resolveModel(w, r, req.Model)
	if !ok {
		return
	}

	result := s.ragReviewer.Review(r.Context(), req.Code, language, modelID, req.Guidelines)
	writeJSON(w, http.StatusOK, fileReviewResponse{
		Success:      true,
		ReviewResult: result,
		CodeSize:     len(req.Code),
		CodeLines:    countLines(req.Code),
	})
}

func (s *Server) ragCompare(w http.ResponseWriter, r *http.Request) {
	var req customReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Code content is required")
		return
	}
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}
	modelID, ok := s.resolveModel(w, r, req.Model)
	if !ok {
		return
	}

	comparison := s.ragReviewer.CompareWithTraditional(r.Context(), req.Code, language, modelID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"comparison": comparison,
		"timestamp":  time.Now(),
	})
}

type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

func (s *Server) searchGuidelines(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}

	hits, err := s.ragReviewer.SearchGuidelines(r.Context(), req.Query, req.Category, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"query":     req.Query,
		"category":  req.Category,
		"results":   hits,
		"count":     len(hits),
		"timestamp": time.Now(),
	})
}

func (s *Server) knowledgeBaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.knowledge.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"stats":     stats,
		"timestamp": time.Now(),
	})
}

func (s *Server) refreshKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	n, err := s.knowledge.Refresh(r.Context(), s.corpus)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh knowledge base")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Knowledge base refreshed successfully",
		"chunks":    n,
		"timestamp": time.Now(),
	})
}

// --- Agent endpoints ---

func (s *Server) agentInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"agent_info": s.agent.Info(),
	})
}

func (s *Server) agentReview(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: code")
		return
	}
	if req.Language == "" {
		req.Language = defaultLanguage
	}
	modelID, ok := s.resolveModel(w, r, req.ModelID)
	if !ok {
		return
	}
	req.ModelID = modelID

	report := s.agent.Review(r.Context(), req)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"agent_review": report,
		"request_info": map[string]any{
			"code_length":  len(req.Code),
			"language":     req.Language,
			"model_id":     req.ModelID,
			"user_request": report.Request.UserRequest,
		},
	})
}

func (s *Server) agentReviewFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	language := queryDefault(r, "language", defaultLanguage)
	userRequest := r.URL.Query().Get("request")
	if userRequest == "" {
		userRequest = "Perform a comprehensive code review of " + filename
	}

	content, ok := s.readExample(w, filename)
	if !ok {
		return
	}
	modelID, ok := s.resolveModel(w, r, r.URL.Query().Get("model"))
	if !ok {
		return
	}

	report := s.agent.Review(r.Context(), agent.Request{
		Code:        content,
		Language:    language,
		ModelID:     modelID,
		UserRequest: userRequest,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"filename":     filename,
		"agent_review": report,
		"file_info": map[string]any{
			"size":     len(content),
			"lines":    countLines(content),
			"language": language,
		},
	})
}

// --- query helpers ---

func queryDefault(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

func queryTechnique(r *http.Request) models.Technique {
	if v := r.URL.Query().Get("technique"); v != "" {
		return models.Technique(v)
	}
	return defaultTechnique
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
