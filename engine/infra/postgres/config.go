package postgres

import (
	"fmt"

	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

// DSN returns the connection string for the driver. Prefer ConnString;
// when empty, a DSN is synthesized from the individual fields.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnString != "" {
		return cfg.ConnString
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)
}
