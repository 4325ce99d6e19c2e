package cmd

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/meridian-data/catalogd/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending catalog store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		db, err := sql.Open("pgx", cfg.Store.ConnectionString())
		if err != nil {
			return fmt.Errorf("failed to open catalog store: %w", err)
		}
		defer db.Close()

		return database.RunMigrations(db, cfg.Store.MigrationsPath, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
