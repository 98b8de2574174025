package admin

import (
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/knowctx/internal/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
				cfg.MigrationsDir = dir
			}
			return database.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, log)
		},
	}

	cmd.Flags().String("dir", "", "Migrations directory (overrides KNOWCTX_MIGRATIONS_DIR)")

	return cmd
}
