package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/export"
	"github.com/meridian-data/catalogd/pkg/repositories"
	"github.com/meridian-data/catalogd/pkg/services"
)

var exportFlags struct {
	connection string
	syncID     string
	exportJSON bool
	exportCSV  bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a persisted snapshot as JSON or CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		snapshots := repositories.NewSnapshotRepository(db)

		syncID := exportFlags.syncID
		if syncID == "" {
			if exportFlags.connection == "" {
				return fmt.Errorf("either --sync-id or --connection is required")
			}
			runs, err := snapshots.ListRecentSyncRuns(ctx, exportFlags.connection, 1)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("%w: no completed sync runs for %s", apperrors.ErrNotFound, exportFlags.connection)
			}
			syncID = runs[0].SyncID
		}

		tree, err := services.NewSnapshotService(snapshots, logger).AssembleTree(ctx, syncID)
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot %s: %d schemas, %d tables, %d columns\n",
			tree.SyncID, tree.SchemaCount, tree.TableCount, tree.ColumnCount)

		if exportFlags.exportJSON || !exportFlags.exportCSV {
			path, err := export.NewJSONWriter(cfg.Output.JSONDir, logger).
				WriteSnapshot(tree.SyncID, tree.Database, tree.Schemas)
			if err != nil {
				return err
			}
			fmt.Printf("JSON export: %s\n", path)
		}
		if exportFlags.exportCSV {
			paths, err := export.NewCSVWriter(cfg.Output.CSVDir, logger).
				WriteSnapshot(tree.SyncID, tree.Schemas)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Printf("CSV export: %s\n", p)
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.connection, "connection", "", "stored connection name (resolves the most recent snapshot)")
	exportCmd.Flags().StringVar(&exportFlags.syncID, "sync-id", "", "snapshot to export (default: most recent for --connection)")
	exportCmd.Flags().BoolVar(&exportFlags.exportJSON, "json", false, "export as JSON (the default)")
	exportCmd.Flags().BoolVar(&exportFlags.exportCSV, "csv", false, "export as CSV")
	rootCmd.AddCommand(exportCmd)
}
