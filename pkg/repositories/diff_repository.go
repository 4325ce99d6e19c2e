package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/database"
	"github.com/meridian-data/catalogd/pkg/models"
)

// DiffRepository provides data access for diff runs and their change records.
type DiffRepository interface {
	// CreateRun inserts a diff run in running status before any comparison
	// work begins, so a later failure has a row to mark.
	CreateRun(ctx context.Context, run *models.DiffRun) error
	// WriteRun persists all change records and finalizes the run as completed
	// in a single transaction. A diff run is never partially visible.
	WriteRun(ctx context.Context, diffSyncID string, records []*models.DiffRecord, counts models.ChangeCounts) error
	MarkFailed(ctx context.Context, diffSyncID string, errorMessage string) error
	GetRun(ctx context.Context, diffSyncID string) (*models.DiffRun, error)
	ListRecords(ctx context.Context, diffSyncID string, kind models.EntityKind) ([]*models.DiffRecord, error)
}

type diffRepository struct {
	db *database.DB
}

// NewDiffRepository creates a new DiffRepository.
func NewDiffRepository(db *database.DB) DiffRepository {
	return &diffRepository{db: db}
}

var _ DiffRepository = (*diffRepository)(nil)

func (r *diffRepository) CreateRun(ctx context.Context, run *models.DiffRun) error {
	query := `
		INSERT INTO diff_sync_runs (diff_sync_id, connection_id, sync_run_older, sync_run_newer, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		run.DiffSyncID, run.ConnectionID, run.OlderSyncID, run.NewerSyncID,
		models.RunStatusRunning,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create diff run: %w", err)
	}

	run.Status = models.RunStatusRunning
	return nil
}

func (r *diffRepository) WriteRun(ctx context.Context, diffSyncID string, records []*models.DiffRecord, counts models.ChangeCounts) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin diff transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rec := range records {
		if err := insertDiffRecord(ctx, tx, diffSyncID, rec); err != nil {
			return err
		}
	}

	finalizeQuery := `
		UPDATE diff_sync_runs
		SET status = $2,
		    total_schemas_changed = $3,
		    total_tables_changed = $4,
		    total_columns_changed = $5,
		    completed_at = NOW()
		WHERE diff_sync_id = $1 AND status = $6`

	result, err := tx.Exec(ctx, finalizeQuery,
		diffSyncID, models.RunStatusCompleted,
		counts.Schemas, counts.Tables, counts.Columns,
		models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finalize diff run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrRunFinalized
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit diff run: %w", err)
	}

	return nil
}

func insertDiffRecord(ctx context.Context, tx pgx.Tx, diffSyncID string, rec *models.DiffRecord) error {
	olderJSON, newerJSON, diffsJSON, err := encodeDiffRecord(rec)
	if err != nil {
		return err
	}

	switch rec.Kind {
	case models.KindSchema:
		query := `
			INSERT INTO incremental_diff_schemas
				(diff_sync_id, schema_name, change_type, snapshot_older, snapshot_newer, differences)
			VALUES ($1, $2, $3, $4, $5, $6)`
		_, err = tx.Exec(ctx, query, diffSyncID, rec.Key.Name, rec.ChangeType, olderJSON, newerJSON, diffsJSON)
	case models.KindTable:
		query := `
			INSERT INTO incremental_diff_tables
				(diff_sync_id, schema_name, table_name, change_type, snapshot_older, snapshot_newer, differences)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err = tx.Exec(ctx, query, diffSyncID, rec.Key.SchemaName, rec.Key.Name, rec.ChangeType, olderJSON, newerJSON, diffsJSON)
	case models.KindColumn:
		query := `
			INSERT INTO incremental_diff_columns
				(diff_sync_id, schema_name, table_name, column_name, change_type, snapshot_older, snapshot_newer, differences)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err = tx.Exec(ctx, query, diffSyncID, rec.Key.SchemaName, rec.Key.TableName, rec.Key.Name, rec.ChangeType, olderJSON, newerJSON, diffsJSON)
	default:
		return fmt.Errorf("no diff table for entity kind %q", rec.Kind)
	}

	if err != nil {
		return fmt.Errorf("failed to insert %s diff record: %w", rec.Kind, err)
	}
	return nil
}

func encodeDiffRecord(rec *models.DiffRecord) (older, newer, diffs []byte, err error) {
	if rec.SnapshotOlder != nil {
		older, err = json.Marshal(rec.SnapshotOlder)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal older snapshot: %w", err)
		}
	}
	if rec.SnapshotNewer != nil {
		newer, err = json.Marshal(rec.SnapshotNewer)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal newer snapshot: %w", err)
		}
	}
	differences := rec.Differences
	if differences == nil {
		differences = map[string]models.FieldChange{}
	}
	diffs, err = json.Marshal(differences)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal differences: %w", err)
	}
	return older, newer, diffs, nil
}

func (r *diffRepository) MarkFailed(ctx context.Context, diffSyncID string, errorMessage string) error {
	query := `
		UPDATE diff_sync_runs
		SET status = $2, error_message = $3, completed_at = NOW()
		WHERE diff_sync_id = $1 AND status = $4`

	result, err := r.db.Exec(ctx, query, diffSyncID, models.RunStatusFailed, errorMessage, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark diff run failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrRunFinalized
	}

	return nil
}

func (r *diffRepository) GetRun(ctx context.Context, diffSyncID string) (*models.DiffRun, error) {
	query := `
		SELECT diff_sync_id, connection_id, sync_run_older, sync_run_newer, status,
		       total_schemas_changed, total_tables_changed, total_columns_changed,
		       error_message, created_at, completed_at
		FROM diff_sync_runs
		WHERE diff_sync_id = $1`

	var run models.DiffRun
	err := r.db.QueryRow(ctx, query, diffSyncID).Scan(
		&run.DiffSyncID, &run.ConnectionID, &run.OlderSyncID, &run.NewerSyncID,
		&run.Status, &run.SchemasChanged, &run.TablesChanged, &run.ColumnsChanged,
		&run.ErrorMessage, &run.CreatedAt, &run.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get diff run: %w", err)
	}

	return &run, nil
}

func (r *diffRepository) ListRecords(ctx context.Context, diffSyncID string, kind models.EntityKind) ([]*models.DiffRecord, error) {
	var query string
	switch kind {
	case models.KindSchema:
		query = `
			SELECT schema_name, '', '', change_type, snapshot_older, snapshot_newer, differences
			FROM incremental_diff_schemas
			WHERE diff_sync_id = $1
			ORDER BY schema_name`
	case models.KindTable:
		query = `
			SELECT table_name, schema_name, '', change_type, snapshot_older, snapshot_newer, differences
			FROM incremental_diff_tables
			WHERE diff_sync_id = $1
			ORDER BY schema_name, table_name`
	case models.KindColumn:
		query = `
			SELECT column_name, schema_name, table_name, change_type, snapshot_older, snapshot_newer, differences
			FROM incremental_diff_columns
			WHERE diff_sync_id = $1
			ORDER BY schema_name, table_name, column_name`
	default:
		return nil, fmt.Errorf("no diff table for entity kind %q", kind)
	}

	rows, err := r.db.Query(ctx, query, diffSyncID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s diff records: %w", kind, err)
	}
	defer rows.Close()

	records := make([]*models.DiffRecord, 0)
	for rows.Next() {
		rec := &models.DiffRecord{DiffSyncID: diffSyncID, Kind: kind}
		var olderJSON, newerJSON, diffsJSON []byte
		err := rows.Scan(&rec.Key.Name, &rec.Key.SchemaName, &rec.Key.TableName,
			&rec.ChangeType, &olderJSON, &newerJSON, &diffsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diff record: %w", err)
		}

		if olderJSON != nil {
			if err := json.Unmarshal(olderJSON, &rec.SnapshotOlder); err != nil {
				return nil, fmt.Errorf("failed to decode older snapshot: %w", err)
			}
		}
		if newerJSON != nil {
			if err := json.Unmarshal(newerJSON, &rec.SnapshotNewer); err != nil {
				return nil, fmt.Errorf("failed to decode newer snapshot: %w", err)
			}
		}
		if err := json.Unmarshal(diffsJSON, &rec.Differences); err != nil {
			return nil, fmt.Errorf("failed to decode differences: %w", err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diff records: %w", err)
	}

	return records, nil
}
