package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leokalinowski/purpose-driven-crm/engine/infra/postgres"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// MigrateCmd applies pending database migrations and exits.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logLevel, _ := cmd.Flags().GetString("log-level")
			logJSON, _ := cmd.Flags().GetBool("log-json")
			log := logger.SetupLogger(logLevel, logJSON)

			ctx := logger.ContextWithLogger(cmd.Context(), log)
			if err := postgres.ApplyMigrations(ctx, postgres.DSN(&cfg.Database)); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
