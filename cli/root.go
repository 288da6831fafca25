// Package cli defines the crmflow command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd builds the top-level crmflow command.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crmflow",
		Short: "Workflow run orchestrator for the CRM's social pipelines",
		Long: "crmflow orchestrates the CRM's webhook-triggered social post " +
			"scheduling and queue-drained thumbnail generation workflows, " +
			"recording every run and step in Postgres.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	cmd.AddCommand(ServeCmd())
	cmd.AddCommand(MigrateCmd())
	return cmd
}
