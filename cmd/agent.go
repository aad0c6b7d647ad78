package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reviewkit/reviewkit/internal/agent"
	"github.com/reviewkit/reviewkit/internal/output"
)

var (
	agentRequest       string
	agentMaxIterations int
)

var agentCmd = &cobra.Command{
	Use:   "agent [file]",
	Short: "Run an autonomous agent review",
	Long: `Review code with the autonomous agent workflow.

The agent analyzes the code, reasons about which review tools to apply,
invokes them, and synthesizes a final report. Use --request to steer it
("focus on security issues").`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, language, err := resolveCode(args)
		if err != nil {
			return err
		}

		modelID, err := resolveModelID(cmd, reviewModel)
		if err != nil {
			return err
		}

		a, err := getAgent()
		if err != nil {
			return err
		}

		maxIterations := agentMaxIterations
		if maxIterations <= 0 {
			maxIterations = viper.GetInt("agent.max_iterations")
		}

		report := a.Review(cmd.Context(), agent.Request{
			Code:          code,
			Language:      language,
			ModelID:       modelID,
			UserRequest:   agentRequest,
			MaxIterations: maxIterations,
		})

		fmt.Fprintf(ui.Out, "%s %s (%d iterations, %d tools used)\n\n",
			output.Cyan("Agent review:"), report.Request.ModelID,
			report.Analysis.Iterations, report.Analysis.ToolsUsed)
		fmt.Fprintln(ui.Out, report.Results)

		if verbose {
			fmt.Fprintln(ui.Out)
			ui.Info("Reasoning process:")
			fmt.Fprintln(ui.Out, report.Analysis.Reasoning)
		}
		if !report.Metadata.WorkflowComplete {
			ui.Warning("Workflow did not complete cleanly")
		}
		return nil
	},
}

var agentInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show agent capabilities and tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getAgent()
		if err != nil {
			return err
		}

		info := a.Info()
		ui.Info("%s (max %d iterations)", info.AgentType, info.MaxIterations)

		fmt.Fprintln(ui.Out, "\nCapabilities:")
		for _, c := range info.Capabilities {
			fmt.Fprintf(ui.Out, "  - %s\n", c)
		}

		fmt.Fprintf(ui.Out, "\nWorkflow: %s\n", strings.Join(info.WorkflowPhases, " -> "))

		names := make([]string, 0, len(info.AvailableTools))
		for name := range info.AvailableTools {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(ui.Out, "\nTools:")
		table := ui.Table([]string{"Tool", "Description"})
		for _, name := range names {
			table.Append([]string{output.Cyan(name), info.AvailableTools[name]})
		}
		table.Render()
		return nil
	},
}

func init() {
	agentCmd.Flags().StringVar(&reviewCode, "code", "", "Inline code to review instead of a file")
	agentCmd.Flags().StringVarP(&reviewLanguage, "language", "l", "", "Language of the code (default: inferred from extension)")
	agentCmd.Flags().StringVarP(&reviewModel, "model", "m", "", "Model ID (default: first available)")
	agentCmd.Flags().StringVarP(&agentRequest, "request", "r", "", "What to focus the review on")
	agentCmd.Flags().IntVar(&agentMaxIterations, "max-iterations", 0, "Reasoning iteration cap (default from config)")

	agentCmd.AddCommand(agentInfoCmd)
	rootCmd.AddCommand(agentCmd)
}
