package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	subjectName string
	subjectKey  string
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage registered subjects",
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListSubjects(cmd.Context())
	},
}

var subjectsAddCmd = &cobra.Command{
	Use:   "add <subject-id>",
	Short: "Register a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if subjectKey == "" {
			return fmt.Errorf("--api-key is required")
		}
		return getApp().RegisterSubject(cmd.Context(), args[0], subjectName, subjectKey)
	},
}

var subjectsRemoveCmd = &cobra.Command{
	Use:   "remove <subject-id>",
	Short: "Deregister a subject and drop its state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().DeregisterSubject(cmd.Context(), args[0])
	},
}

func init() {
	subjectsAddCmd.Flags().StringVar(&subjectName, "name", "", "Display name")
	subjectsAddCmd.Flags().StringVar(&subjectKey, "api-key", "", "Subject API key")

	subjectsCmd.AddCommand(subjectsListCmd)
	subjectsCmd.AddCommand(subjectsAddCmd)
	subjectsCmd.AddCommand(subjectsRemoveCmd)
}
