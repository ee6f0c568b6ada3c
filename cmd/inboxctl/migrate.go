package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/welldanyogia/webrana-inbox-backend/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		// app.Build migrates on connect
		return withComponents(cmd.Context(), func(c *app.Components) error {
			fmt.Fprintln(cmd.OutOrStdout(), "database schema is up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
