package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reverb-labs/recall/internal/config"
	"github.com/reverb-labs/recall/internal/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("RECALL_DATABASE_URL is required")
			}
			return database.Migrate(cfg.DatabaseURL, newLogger(cfg))
		},
	}
}
