package cmd

import (
	"github.com/spf13/cobra"

	"github.com/reviewkit/reviewkit/internal/output"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured models and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := getRegistry()
		if err != nil {
			return err
		}

		ids := r.IDs()
		if len(ids) == 0 {
			ui.Info("No models configured. Add them to models.yaml.")
			return nil
		}

		available := r.Available(cmd.Context())

		table := ui.Table([]string{"Model", "Provider", "Name", "Status", "Description"})
		for _, id := range ids {
			cfg, _ := r.Get(id)
			status := output.Red("unavailable")
			if _, ok := available[id]; ok {
				status = output.Green("available")
			}
			table.Append([]string{output.Cyan(id), cfg.Provider, cfg.ModelName, status, cfg.Description})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
