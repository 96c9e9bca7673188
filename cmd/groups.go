package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"wadigest/pkg/greenapi"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the WhatsApp groups of the Green API instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		client, err := greenapi.New(appConfig.GreenAPI)
		if err != nil {
			return err
		}
		groups, err := client.Groups(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(groups) == 0 {
			fmt.Fprintln(out, "No groups found.")
			return nil
		}
		for _, group := range groups {
			fmt.Fprintf(out, "%-40s %s\n", group.ID, group.DisplayName())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
