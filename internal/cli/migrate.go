package cli

import (
	"github.com/spf13/cobra"

	"mathengine/internal/config"
	"mathengine/internal/postgres"
)

// NewMigrateCmd применяет миграции postgres
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run postgres migrations for the answer history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return postgres.Migrate(cmd.Context(), cfg.Postgres.URL)
		},
	}
}
