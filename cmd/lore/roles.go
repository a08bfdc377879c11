package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lore-assistant/internal/config"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/prompt"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List answer personas accepted by --role",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		renderer, err := prompt.New(config.Load().PromptRolesFile)
		if err != nil {
			return err
		}
		for _, line := range renderer.Roles() {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}
