package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	watchCountry  string
	watchItemID   int64
	watchItemName string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched items for restock monitoring",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <subject-id>",
	Short: "Watch an item in a country for the subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchCountry == "" || watchItemID == 0 {
			return fmt.Errorf("--country and --item are required")
		}
		return getApp().AddWatch(cmd.Context(), args[0], watchCountry, watchItemID, watchItemName)
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <subject-id>",
	Short: "Stop watching an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchCountry == "" || watchItemID == 0 {
			return fmt.Errorf("--country and --item are required")
		}
		return getApp().RemoveWatch(cmd.Context(), args[0], watchCountry, watchItemID)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{watchAddCmd, watchRemoveCmd} {
		cmd.Flags().StringVar(&watchCountry, "country", "", "Country code of the stock feed")
		cmd.Flags().Int64Var(&watchItemID, "item", 0, "Item id")
	}
	watchAddCmd.Flags().StringVar(&watchItemName, "name", "", "Item display name")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
}
