package cli

import (
	"github.com/spf13/cobra"

	"torn-alert-watcher/internal/app"
)

var statusSubject string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display persisted alert state and watched items",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.StatusOptions{
			SubjectID: statusSubject,
		}
		return getApp().Status(cmd.Context(), opts)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSubject, "subject", "", "Limit output to one subject id")
}
