package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"torn-alert-watcher/internal/app"
)

var (
	simulateGroup   string
	simulatePayload string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <subject-id>",
	Short: "Run a synthetic payload through the live engine and notifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateGroup == "" || simulatePayload == "" {
			return fmt.Errorf("--group and --payload are required")
		}
		opts := app.SimulateOptions{
			SubjectID: args[0],
			Group:     simulateGroup,
			Payload:   simulatePayload,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateGroup, "group", "", "Data group of the payload")
	simulateCmd.Flags().StringVar(&simulatePayload, "payload", "", "Raw JSON payload")
}
