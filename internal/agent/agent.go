// Package agent runs the autonomous review workflow: a bounded loop in which
// a model repeatedly picks one of a fixed set of review tools, observes its
// output, and finally synthesizes a report. The loop is a plain state machine
// with an explicit phase tag; it terminates within maxIterations+1 phases no
// matter what the model answers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reviewkit/reviewkit/internal/provider"
	"github.com/reviewkit/reviewkit/internal/review"
)

// Phase is the current step of the workflow loop.
type Phase string

const (
	PhaseAnalyze    Phase = "analyze"
	PhaseReason     Phase = "reason"
	PhaseAct        Phase = "act"
	PhaseSynthesize Phase = "synthesize"
	PhaseDone       Phase = "done"
)

// DefaultMaxIterations caps the reasoning loop.
const DefaultMaxIterations = 5

const actionSynthesize = "synthesize"

// Request describes one agent review job.
type Request struct {
	Code          string `json:"code"`
	Language      string `json:"language"`
	ModelID       string `json:"model_id"`
	UserRequest   string `json:"user_request"`
	MaxIterations int    `json:"max_iterations"`
}

// ToolResult records one tool invocation, including failures.
type ToolResult struct {
	Tool   string `json:"tool"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// State is the mutable, request-scoped workflow state. It is discarded when
// the request finishes.
type State struct {
	Code        string
	Language    string
	ModelID     string
	UserRequest string

	Transcript      []string
	AnalysisResults []ToolResult
	Reasoning       strings.Builder
	Iterations      int
	NextAction      string
	FinalResponse   string
}

// Report is the agent's response envelope.
type Report struct {
	Request  ReportRequest  `json:"request"`
	Analysis ReportAnalysis `json:"agent_analysis"`
	Results  string         `json:"review_results"`
	Metadata ReportMetadata `json:"metadata"`
}

type ReportRequest struct {
	Language    string `json:"language"`
	ModelID     string `json:"model_id"`
	UserRequest string `json:"user_request"`
}

type ReportAnalysis struct {
	Iterations int    `json:"iterations"`
	Reasoning  string `json:"reasoning_process"`
	ToolsUsed  int    `json:"tools_used"`
}

type ReportMetadata struct {
	Timestamp        time.Time `json:"timestamp"`
	WorkflowComplete bool      `json:"workflow_complete"`
}

// Agent coordinates the workflow over the shared reviewers.
type Agent struct {
	source review.ModelSource
	tools  *Toolbox
}

// New creates an agent over the given model source and tool set.
func New(source review.ModelSource, tools *Toolbox) *Agent {
	return &Agent{source: source, tools: tools}
}

// Review runs the full workflow and returns the synthesized report.
func (a *Agent) Review(ctx context.Context, req Request) *Report {
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if req.UserRequest == "" {
		req.UserRequest = "Perform a comprehensive code review"
	}

	st := &State{
		Code:        req.Code,
		Language:    req.Language,
		ModelID:     req.ModelID,
		UserRequest: req.UserRequest,
	}

	phase := PhaseAnalyze
	for phase != PhaseDone {
		switch phase {
		case PhaseAnalyze:
			a.analyze(ctx, st)
			phase = PhaseReason
		case PhaseReason:
			a.reason(ctx, st)
			phase = a.route(st, maxIterations)
		case PhaseAct:
			a.act(ctx, st)
			phase = PhaseReason
		case PhaseSynthesize:
			a.synthesize(ctx, st)
			phase = PhaseDone
		}
	}

	return &Report{
		Request: ReportRequest{
			Language:    req.Language,
			ModelID:     req.ModelID,
			UserRequest: req.UserRequest,
		},
		Analysis: ReportAnalysis{
			Iterations: st.Iterations,
			Reasoning:  st.Reasoning.String(),
			ToolsUsed:  len(st.AnalysisResults),
		},
		Results: st.FinalResponse,
		Metadata: ReportMetadata{
			Timestamp:        time.Now(),
			WorkflowComplete: st.FinalResponse != "",
		},
	}
}

// chat sends one prompt pair to the request's model.
func (a *Agent) chat(ctx context.Context, st *State, system, user string) (string, error) {
	cfg, ok := a.source.Get(st.ModelID)
	if !ok {
		return "", fmt.Errorf("model %s not found in registry", st.ModelID)
	}
	client, err := a.source.Client(st.ModelID)
	if err != nil {
		return "", err
	}
	resp, err := client.Chat(ctx, provider.ChatRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	st.Transcript = append(st.Transcript, user, resp.Content)
	return resp.Content, nil
}

// analyze asks the model for an initial plan. A failure is logged into the
// reasoning trail; the loop still proceeds to reasoning.
func (a *Agent) analyze(ctx context.Context, st *State) {
	user := fmt.Sprintf(`Analyze this code review request and determine the best approach:

CODE:
%s

USER REQUEST: %s
LANGUAGE: %s

Based on the code and request, determine:
1. What type of review is most appropriate (RAG-enhanced, traditional, comparative)
2. What specific aspects to focus on (security, performance, style, etc.)
3. What information might be needed from the knowledge base
4. The complexity level of the code

Respond with your analysis and initial plan.`,
		fencedCode(st.Language, st.Code), st.UserRequest, st.Language)

	content, err := a.chat(ctx, st,
		"You are an expert code review strategist. Analyze requests and plan the best review approach.", user)
	if err != nil {
		slog.Warn("agent analysis failed", "error", err)
		fmt.Fprintf(&st.Reasoning, "Analysis failed: %v", err)
	} else {
		fmt.Fprintf(&st.Reasoning, "Initial analysis: %s", content)
	}
	st.Iterations = 1
}

// reason asks the model what to do next. A failure degrades straight to
// synthesis.
func (a *Agent) reason(ctx context.Context, st *State) {
	slog.Debug("agent reasoning", "iteration", st.Iterations)

	user := fmt.Sprintf(`Current context:
%s

Based on the analysis and any previous tool results, decide what to do next:

Available tools:
- rag_code_review: RAG-enhanced review with guidelines
- traditional_code_review: Standard LLM review
- search_guidelines: Search for specific guidelines
- compare_review_approaches: Compare different review methods
- knowledge_base_stats: Check knowledge base status

Decide:
1. Should I use a tool? If so, which one?
2. Do I have enough information to provide a final response?

Respond with your reasoning and the action to take.
Format your response as:
REASONING: [your thought process]
ACTION: [tool_name OR "synthesize" if ready to conclude]`, a.reasoningContext(st))

	content, err := a.chat(ctx, st,
		"You are an expert code review strategist deciding the next step.", user)
	if err != nil {
		slog.Warn("agent reasoning failed", "error", err)
		st.NextAction = actionSynthesize
		st.Iterations++
		return
	}

	fmt.Fprintf(&st.Reasoning, "\n\nIteration %d: %s", st.Iterations, content)
	st.NextAction = a.tools.parseAction(content)
	st.Iterations++
	slog.Debug("agent planned action", "action", st.NextAction)
}

// route picks the next phase from the planned action and the iteration cap.
func (a *Agent) route(st *State, maxIterations int) Phase {
	if st.Iterations > maxIterations {
		slog.Warn("agent iteration cap reached, synthesizing", "iterations", st.Iterations)
		return PhaseSynthesize
	}
	if st.NextAction == actionSynthesize {
		return PhaseSynthesize
	}
	if a.tools.Has(st.NextAction) {
		return PhaseAct
	}
	return PhaseReason
}

// act invokes the planned tool. Failures become result entries; the loop
// continues either way.
func (a *Agent) act(ctx context.Context, st *State) {
	name := st.NextAction
	output, err := a.tools.Call(ctx, name, st)
	result := ToolResult{Tool: name, Output: output}
	if err != nil {
		slog.Warn("agent tool failed", "tool", name, "error", err)
		result.Output = ""
		result.Error = err.Error()
	}
	st.AnalysisResults = append(st.AnalysisResults, result)
	st.NextAction = ""
}

// synthesize produces the final report text from everything gathered so far.
func (a *Agent) synthesize(ctx context.Context, st *State) {
	results, err := json.MarshalIndent(st.AnalysisResults, "", "  ")
	if err != nil {
		results = []byte("[]")
	}

	user := fmt.Sprintf(`Based on all the analysis and tool results, provide a comprehensive code review response:

ORIGINAL REQUEST: %s
CODE LANGUAGE: %s

ANALYSIS RESULTS:
%s

REASONING PROCESS:
%s

Provide a final, comprehensive code review that:
1. Summarizes the key findings
2. Highlights the most important issues and suggestions
3. Explains the review approach taken
4. Provides actionable recommendations
5. Notes any limitations or areas for further investigation

Format as a professional code review report.`,
		st.UserRequest, st.Language, results, st.Reasoning.String())

	content, err := a.chat(ctx, st,
		"You are an expert code reviewer providing final comprehensive analysis.", user)
	if err != nil {
		slog.Warn("agent synthesis failed", "error", err)
		st.FinalResponse = fmt.Sprintf("Error synthesizing results: %v", err)
		return
	}
	st.FinalResponse = content
}

func (a *Agent) reasoningContext(st *State) string {
	parts := []string{
		"User Request: " + st.UserRequest,
		"Language: " + st.Language,
		fmt.Sprintf("Iteration: %d", st.Iterations),
	}
	if len(st.AnalysisResults) > 0 {
		parts = append(parts, fmt.Sprintf("Previous Results: %d tool executions", len(st.AnalysisResults)))
	}
	if len(st.Transcript) > 0 {
		parts = append(parts, "Conversation so far:\n"+strings.Join(st.Transcript, "\n---\n"))
	}
	return strings.Join(parts, "\n")
}

func fencedCode(language, code string) string {
	return fmt.Sprintf("```%s\n%s\n```", language, code)
}

// Info describes the agent's capabilities for the info endpoint.
type Info struct {
	AgentType      string            `json:"agent_type"`
	Capabilities   []string          `json:"capabilities"`
	AvailableTools map[string]string `json:"available_tools"`
	WorkflowPhases []string          `json:"workflow_phases"`
	MaxIterations  int               `json:"max_iterations"`
}

// Info reports the agent's tool set and workflow shape.
func (a *Agent) Info() Info {
	return Info{
		AgentType: "CodeReviewAgent",
		Capabilities: []string{
			"Autonomous code analysis",
			"Multi-tool coordination",
			"RAG-enhanced reviews",
			"Comparative analysis",
			"Adaptive reasoning",
		},
		AvailableTools: a.tools.Descriptions(),
		WorkflowPhases: []string{
			string(PhaseAnalyze), string(PhaseReason), string(PhaseAct), string(PhaseSynthesize),
		},
		MaxIterations: DefaultMaxIterations,
	}
}
