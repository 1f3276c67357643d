package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/backoffice-wizard/internal/container"
	"github.com/garyjia/backoffice-wizard/pkg/database"
)

var extraMigrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Long: `Apply the schema compiled into the binary, then any NNN_name.sql files
found in --dir. Versions already recorded in schema_migrations are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		bundle, err := container.ProvideDatabase(&cfg.Database, logger)
		if err != nil {
			return err
		}
		defer bundle.Conn.Close()

		if extraMigrationsDir != "" {
			if err := database.NewMigrator(bundle.Conn, logger).RunMigrations(extraMigrationsDir); err != nil {
				return fmt.Errorf("failed to run migrations from %s: %w", extraMigrationsDir, err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", cfg.Database.Path)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&extraMigrationsDir, "dir", "", "directory of additional migrations")
}
