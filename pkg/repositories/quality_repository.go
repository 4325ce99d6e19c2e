package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/database"
	"github.com/meridian-data/catalogd/pkg/models"
)

// QualityRepository provides data access for quality extraction runs and
// their per-table and per-column metrics.
type QualityRepository interface {
	CreateRun(ctx context.Context, run *models.QualityRun) error
	// WriteMetrics persists all table and column metrics for a run and
	// finalizes it as completed in a single transaction.
	WriteMetrics(ctx context.Context, runID int64, tables []*models.TableQualityMetrics, durationSeconds float64) error
	MarkFailed(ctx context.Context, runID int64, errorMessage string) error
	GetRunBySyncID(ctx context.Context, syncID string) (*models.QualityRun, error)
	ListTableMetrics(ctx context.Context, runID int64) ([]*models.TableQualityMetrics, error)
}

type qualityRepository struct {
	db *database.DB
}

// NewQualityRepository creates a new QualityRepository.
func NewQualityRepository(db *database.DB) QualityRepository {
	return &qualityRepository{db: db}
}

var _ QualityRepository = (*qualityRepository)(nil)

func (r *qualityRepository) CreateRun(ctx context.Context, run *models.QualityRun) error {
	query := `
		INSERT INTO quality_metrics_runs (sync_id, target_schemas, status)
		VALUES ($1, $2, $3)
		RETURNING run_id, created_at`

	err := r.db.QueryRow(ctx, query, run.SyncID, run.TargetSchemas, models.RunStatusRunning).
		Scan(&run.RunID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quality run: %w", err)
	}

	run.Status = models.RunStatusRunning
	return nil
}

func (r *qualityRepository) WriteMetrics(ctx context.Context, runID int64, tables []*models.TableQualityMetrics, durationSeconds float64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin quality transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	totalColumns := 0
	for _, t := range tables {
		tableQuery := `
			INSERT INTO table_quality_metrics (run_id, schema_name, table_name, row_count)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, tableQuery, runID, t.SchemaName, t.TableName, t.RowCount); err != nil {
			return fmt.Errorf("failed to insert table metrics for %s.%s: %w", t.SchemaName, t.TableName, err)
		}

		for _, c := range t.ColumnMetrics {
			totalColumns++
			columnQuery := `
				INSERT INTO column_quality_metrics (
					run_id, schema_name, table_name, column_name,
					total_count, non_null_count, null_count, null_percentage,
					distinct_count, distinct_percentage
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING metric_id`

			var metricID int64
			err := tx.QueryRow(ctx, columnQuery,
				runID, t.SchemaName, t.TableName, c.ColumnName,
				c.TotalCount, c.NonNullCount, c.NullCount, c.NullPercentage,
				c.DistinctCount, c.DistinctPercentage,
			).Scan(&metricID)
			if err != nil {
				return fmt.Errorf("failed to insert column metrics for %s: %w", c.ColumnName, err)
			}

			for _, tv := range c.TopValues {
				var pct float64
				if c.TotalCount > 0 {
					pct = float64(tv.Frequency) / float64(c.TotalCount) * 100
				}
				topQuery := `
					INSERT INTO column_top_values (metric_id, value_text, frequency, percentage)
					VALUES ($1, $2, $3, $4)`
				valueText := fmt.Sprintf("%v", tv.Value)
				if _, err := tx.Exec(ctx, topQuery, metricID, valueText, tv.Frequency, pct); err != nil {
					return fmt.Errorf("failed to insert top value for %s: %w", c.ColumnName, err)
				}
			}
		}
	}

	finalizeQuery := `
		UPDATE quality_metrics_runs
		SET status = $2, total_tables = $3, total_columns = $4, extraction_duration_seconds = $5
		WHERE run_id = $1 AND status = $6`

	result, err := tx.Exec(ctx, finalizeQuery,
		runID, models.RunStatusCompleted, len(tables), totalColumns, durationSeconds,
		models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finalize quality run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrRunFinalized
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit quality run: %w", err)
	}

	return nil
}

func (r *qualityRepository) MarkFailed(ctx context.Context, runID int64, errorMessage string) error {
	query := `
		UPDATE quality_metrics_runs
		SET status = $2, error_message = $3
		WHERE run_id = $1 AND status = $4`

	result, err := r.db.Exec(ctx, query, runID, models.RunStatusFailed, errorMessage, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark quality run failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrRunFinalized
	}

	return nil
}

func (r *qualityRepository) GetRunBySyncID(ctx context.Context, syncID string) (*models.QualityRun, error) {
	query := `
		SELECT run_id, sync_id, target_schemas, total_tables, total_columns,
		       status, error_message, extraction_duration_seconds, created_at
		FROM quality_metrics_runs
		WHERE sync_id = $1`

	var run models.QualityRun
	err := r.db.QueryRow(ctx, query, syncID).Scan(
		&run.RunID, &run.SyncID, &run.TargetSchemas, &run.TotalTables, &run.TotalColumns,
		&run.Status, &run.ErrorMessage, &run.DurationSeconds, &run.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quality run: %w", err)
	}

	return &run, nil
}

func (r *qualityRepository) ListTableMetrics(ctx context.Context, runID int64) ([]*models.TableQualityMetrics, error) {
	tableQuery := `
		SELECT schema_name, table_name, row_count
		FROM table_quality_metrics
		WHERE run_id = $1
		ORDER BY schema_name, table_name`

	rows, err := r.db.Query(ctx, tableQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list table metrics: %w", err)
	}
	defer rows.Close()

	tables := make([]*models.TableQualityMetrics, 0)
	index := make(map[string]*models.TableQualityMetrics)
	for rows.Next() {
		var t models.TableQualityMetrics
		if err := rows.Scan(&t.SchemaName, &t.TableName, &t.RowCount); err != nil {
			return nil, fmt.Errorf("failed to scan table metrics: %w", err)
		}
		tables = append(tables, &t)
		index[t.SchemaName+"."+t.TableName] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table metrics: %w", err)
	}
	rows.Close()

	columnQuery := `
		SELECT schema_name, table_name, column_name,
		       total_count, non_null_count, null_count, null_percentage,
		       distinct_count, distinct_percentage
		FROM column_quality_metrics
		WHERE run_id = $1
		ORDER BY schema_name, table_name, column_name`

	colRows, err := r.db.Query(ctx, columnQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list column metrics: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var (
			schemaName, tableName string
			c                     models.ColumnQualityMetrics
		)
		err := colRows.Scan(&schemaName, &tableName, &c.ColumnName,
			&c.TotalCount, &c.NonNullCount, &c.NullCount, &c.NullPercentage,
			&c.DistinctCount, &c.DistinctPercentage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column metrics: %w", err)
		}
		if t, ok := index[schemaName+"."+tableName]; ok {
			t.ColumnMetrics = append(t.ColumnMetrics, c)
		}
	}
	if err := colRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metrics: %w", err)
	}

	return tables, nil
}
