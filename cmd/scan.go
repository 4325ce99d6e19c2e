package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-data/catalogd/pkg/export"
	"github.com/meridian-data/catalogd/pkg/repositories"
	"github.com/meridian-data/catalogd/pkg/services"
	"github.com/meridian-data/catalogd/pkg/source"
	pgsource "github.com/meridian-data/catalogd/pkg/source/postgres"
)

var scanFlags struct {
	connection string
	exportJSON bool
	exportCSV  bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Extract a metadata snapshot from a source database",
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

		pool, _, err := openSource(ctx, db, cfg, logger, scanFlags.connection)
		if err != nil {
			return err
		}
		defer pool.Close()

		overlay, err := source.LoadOverlay(cfg.Extraction.MetadataYAML)
		if err != nil {
			return err
		}

		snapshots := repositories.NewSnapshotRepository(db)
		scanner := services.NewScanService(snapshots, cfg.Extraction.TenantID, cfg.Extraction.ConnectorName, logger)

		result, err := scanner.Scan(ctx, services.ScanRequest{
			ConnectionName:  scanFlags.connection,
			Source:          pgsource.NewSource(pool, logger),
			Schemas:         cfg.Extraction.Schemas,
			ExtractComments: cfg.Extraction.ExtractComments,
			ParseTags:       cfg.Extraction.ParseTags,
			Overlay:         overlay,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Sync %s completed: %d schemas, %d tables, %d columns (database %s)\n",
			result.SyncID, result.SchemaCount, result.TableCount, result.ColumnCount, result.DatabaseName)

		if scanFlags.exportJSON {
			path, err := export.NewJSONWriter(cfg.Output.JSONDir, logger).
				WriteSnapshot(result.SyncID, result.Database, result.Schemas)
			if err != nil {
				return err
			}
			fmt.Printf("JSON export: %s\n", path)
		}
		if scanFlags.exportCSV {
			paths, err := export.NewCSVWriter(cfg.Output.CSVDir, logger).
				WriteSnapshot(result.SyncID, result.Schemas)
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
	scanCmd.Flags().StringVar(&scanFlags.connection, "connection", "", "stored connection name (required)")
	scanCmd.Flags().BoolVar(&scanFlags.exportJSON, "json", false, "export the snapshot as JSON")
	scanCmd.Flags().BoolVar(&scanFlags.exportCSV, "csv", false, "export the snapshot as CSV")
	_ = scanCmd.MarkFlagRequired("connection")
	rootCmd.AddCommand(scanCmd)
}
