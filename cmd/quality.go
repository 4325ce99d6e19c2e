package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/repositories"
	"github.com/meridian-data/catalogd/pkg/services"
	pgsource "github.com/meridian-data/catalogd/pkg/source/postgres"
)

var qualityFlags struct {
	connection string
	syncID     string
}

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Profile data quality for a snapshot's tables",
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

		syncID := qualityFlags.syncID
		if syncID == "" {
			runs, err := snapshots.ListRecentSyncRuns(ctx, qualityFlags.connection, 1)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("%w: no completed sync runs for %s", apperrors.ErrNotFound, qualityFlags.connection)
			}
			syncID = runs[0].SyncID
		}

		pool, _, err := openSource(ctx, db, cfg, logger, qualityFlags.connection)
		if err != nil {
			return err
		}
		defer pool.Close()

		src := pgsource.NewSource(pool, logger,
			pgsource.WithQualitySampling(cfg.Metrics.TopKValues, cfg.Metrics.SampleLimit))

		quality := services.NewQualityService(snapshots, repositories.NewQualityRepository(db), logger)
		summary, err := quality.ExtractMetrics(ctx, syncID, src, cfg.Extraction.Schemas)
		if err != nil {
			return err
		}

		fmt.Printf("Quality run %d for sync %s\n", summary.RunID, summary.SyncID)
		fmt.Printf("Score: %.1f (high-null columns: %d, low-distinct columns: %d of %d)\n",
			summary.Score, summary.HighNullColumns, summary.LowDistinctColumns, summary.TotalColumns)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TABLE\tROWS\tCOLUMNS")
		for _, t := range summary.Tables {
			fmt.Fprintf(w, "%s.%s\t%d\t%d\n", t.SchemaName, t.TableName, t.RowCount, len(t.ColumnMetrics))
		}
		return w.Flush()
	},
}

func init() {
	qualityCmd.Flags().StringVar(&qualityFlags.connection, "connection", "", "stored connection name (required)")
	qualityCmd.Flags().StringVar(&qualityFlags.syncID, "sync-id", "", "snapshot to profile (default: most recent)")
	_ = qualityCmd.MarkFlagRequired("connection")
	rootCmd.AddCommand(qualityCmd)
}
