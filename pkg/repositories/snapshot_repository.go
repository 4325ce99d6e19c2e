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

// SnapshotRepository provides data access for sync runs and the normalized
// entity snapshots they produce.
type SnapshotRepository interface {
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	// FinalizeSyncRun marks a run completed or failed. Terminal runs are
	// immutable: finalizing an already-terminal run returns ErrRunFinalized.
	FinalizeSyncRun(ctx context.Context, syncID string, status models.RunStatus, errorMessage *string) error
	GetSyncRun(ctx context.Context, syncID string) (*models.SyncRun, error)
	// ListRecentSyncRuns returns completed runs for a connection, newest
	// first, capped at limit.
	ListRecentSyncRuns(ctx context.Context, connectionName string, limit int) ([]*models.SyncRun, error)
	AppendEntities(ctx context.Context, kind models.EntityKind, entities []*models.Entity) error
	// LoadEntities returns all persisted entities of one kind for a sync run,
	// keyed and JSON-decoded for diffing.
	LoadEntities(ctx context.Context, syncID string, kind models.EntityKind) ([]*models.SnapshotEntity, error)
}

type snapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *database.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

var _ SnapshotRepository = (*snapshotRepository)(nil)

func entityTable(kind models.EntityKind) (string, error) {
	switch kind {
	case models.KindSchema:
		return "normalized_schemas", nil
	case models.KindTable:
		return "normalized_tables", nil
	case models.KindColumn:
		return "normalized_columns", nil
	default:
		return "", fmt.Errorf("no snapshot table for entity kind %q", kind)
	}
}

// ============================================================================
// Sync Run Lifecycle
// ============================================================================

func (r *snapshotRepository) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT INTO sync_runs (sync_id, connector_name, connection_name, tenant_id, status, sync_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		run.SyncID, run.ConnectorName, run.ConnectionName, run.TenantID,
		models.RunStatusRunning, run.Timestamp,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	run.Status = models.RunStatusRunning
	return nil
}

func (r *snapshotRepository) FinalizeSyncRun(ctx context.Context, syncID string, status models.RunStatus, errorMessage *string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finalize sync run %s with non-terminal status %q", syncID, status)
	}

	query := `
		UPDATE sync_runs
		SET status = $2, error_message = $3
		WHERE sync_id = $1 AND status = $4`

	result, err := r.db.Exec(ctx, query, syncID, status, errorMessage, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finalize sync run: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM sync_runs WHERE sync_id = $1)`
		if err := r.db.QueryRow(ctx, checkQuery, syncID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check sync run: %w", err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrRunFinalized
	}

	return nil
}

func (r *snapshotRepository) GetSyncRun(ctx context.Context, syncID string) (*models.SyncRun, error) {
	query := `
		SELECT sync_id, connector_name, connection_name, tenant_id, status,
		       error_message, sync_timestamp, created_at
		FROM sync_runs
		WHERE sync_id = $1`

	var run models.SyncRun
	err := r.db.QueryRow(ctx, query, syncID).Scan(
		&run.SyncID, &run.ConnectorName, &run.ConnectionName, &run.TenantID,
		&run.Status, &run.ErrorMessage, &run.Timestamp, &run.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	return &run, nil
}

func (r *snapshotRepository) ListRecentSyncRuns(ctx context.Context, connectionName string, limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT sync_id, connector_name, connection_name, tenant_id, status,
		       error_message, sync_timestamp, created_at
		FROM sync_runs
		WHERE connection_name = $1 AND status = $2
		ORDER BY sync_timestamp DESC, created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, connectionName, models.RunStatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.SyncRun, 0)
	for rows.Next() {
		var run models.SyncRun
		err := rows.Scan(
			&run.SyncID, &run.ConnectorName, &run.ConnectionName, &run.TenantID,
			&run.Status, &run.ErrorMessage, &run.Timestamp, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// Normalized Entity Snapshots
// ============================================================================

func (r *snapshotRepository) AppendEntities(ctx context.Context, kind models.EntityKind, entities []*models.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	table, err := entityTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			sync_id, type_name, status, name, connection_name, tenant_id,
			last_sync_run, last_sync_run_at, connector_name, attributes, custom_attributes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, table)

	batch := &pgx.Batch{}
	for _, e := range entities {
		attrsJSON, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes for %s: %w", e.Name, err)
		}
		customJSON, err := json.Marshal(e.CustomAttributes)
		if err != nil {
			return fmt.Errorf("failed to marshal custom attributes for %s: %w", e.Name, err)
		}
		batch.Queue(query,
			e.LastSyncRun, e.Kind, e.Status, e.Name, e.ConnectionName, e.TenantID,
			e.LastSyncRun, e.LastSyncRunAt, e.ConnectorName, attrsJSON, customJSON)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range entities {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert %s entity: %w", kind, err)
		}
	}

	return nil
}

func (r *snapshotRepository) LoadEntities(ctx context.Context, syncID string, kind models.EntityKind) ([]*models.SnapshotEntity, error) {
	table, err := entityTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT type_name, status, name, connection_name, tenant_id,
		       last_sync_run, last_sync_run_at, connector_name, attributes, custom_attributes
		FROM %s
		WHERE sync_id = $1
		ORDER BY name`, table)

	rows, err := r.db.Query(ctx, query, syncID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s entities: %w", kind, err)
	}
	defer rows.Close()

	entities := make([]*models.SnapshotEntity, 0)
	for rows.Next() {
		e, err := scanSnapshotEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s entities: %w", kind, err)
	}

	return entities, nil
}

func scanSnapshotEntity(rows pgx.Rows) (*models.SnapshotEntity, error) {
	var (
		entity     models.Entity
		attrsJSON  []byte
		customJSON []byte
	)
	err := rows.Scan(
		&entity.Kind, &entity.Status, &entity.Name, &entity.ConnectionName,
		&entity.TenantID, &entity.LastSyncRun, &entity.LastSyncRunAt,
		&entity.ConnectorName, &attrsJSON, &customJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	if err := json.Unmarshal(attrsJSON, &entity.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes for %s: %w", entity.Name, err)
	}
	if err := json.Unmarshal(customJSON, &entity.CustomAttributes); err != nil {
		return nil, fmt.Errorf("failed to decode custom attributes for %s: %w", entity.Name, err)
	}

	return &models.SnapshotEntity{
		Key:              entity.Key(),
		Entity:           &entity,
		Attributes:       entity.Attributes,
		CustomAttributes: entity.CustomAttributes,
		Record: map[string]any{
			"typeName":         string(entity.Kind),
			"status":           entity.Status,
			"name":             entity.Name,
			"connectionName":   entity.ConnectionName,
			"tenantId":         entity.TenantID,
			"lastSyncRun":      entity.LastSyncRun,
			"lastSyncRunAt":    entity.LastSyncRunAt,
			"connectorName":    entity.ConnectorName,
			"attributes":       entity.Attributes,
			"customAttributes": entity.CustomAttributes,
		},
	}, nil
}
