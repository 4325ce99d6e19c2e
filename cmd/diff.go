package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/export"
	"github.com/meridian-data/catalogd/pkg/models"
	"github.com/meridian-data/catalogd/pkg/repositories"
	"github.com/meridian-data/catalogd/pkg/services"
)

var diffFlags struct {
	connection string
	exportJSON bool
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compute the incremental diff between the two most recent snapshots",
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
		diffs := repositories.NewDiffRepository(db)
		differ := services.NewDiffService(snapshots, diffs, logger)

		summary, err := differ.RunIncrementalDiff(ctx, diffFlags.connection)
		if err != nil {
			if errors.Is(err, apperrors.ErrInsufficientHistory) {
				fmt.Fprintln(os.Stderr, "Not enough completed sync runs to diff; run scan at least twice first.")
			}
			return err
		}

		fmt.Printf("Diff %s (%s -> %s)\n", summary.DiffSyncID, summary.OlderSyncID, summary.NewerSyncID)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tCHANGED")
		fmt.Fprintf(w, "schemas\t%d\n", summary.Counts.Schemas)
		fmt.Fprintf(w, "tables\t%d\n", summary.Counts.Tables)
		fmt.Fprintf(w, "columns\t%d\n", summary.Counts.Columns)
		fmt.Fprintf(w, "total\t%d\n", summary.Counts.Total())
		if err := w.Flush(); err != nil {
			return err
		}

		if diffFlags.exportJSON {
			var records []*models.DiffRecord
			for _, kind := range []models.EntityKind{models.KindSchema, models.KindTable, models.KindColumn} {
				kindRecords, err := diffs.ListRecords(ctx, summary.DiffSyncID, kind)
				if err != nil {
					return err
				}
				records = append(records, kindRecords...)
			}
			path, err := export.NewJSONWriter(cfg.Output.JSONDir, logger).WriteDiff(summary, records)
			if err != nil {
				return err
			}
			fmt.Printf("JSON export: %s\n", path)
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffFlags.connection, "connection", "", "stored connection name (required)")
	diffCmd.Flags().BoolVar(&diffFlags.exportJSON, "json", false, "export the diff as JSON")
	_ = diffCmd.MarkFlagRequired("connection")
	rootCmd.AddCommand(diffCmd)
}
