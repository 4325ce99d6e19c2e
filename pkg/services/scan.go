// Package services holds the orchestration layer: extraction scans, the
// incremental diff engine, quality profiling, and credential management.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/models"
	"github.com/meridian-data/catalogd/pkg/repositories"
	"github.com/meridian-data/catalogd/pkg/source"
)

// ScanRequest describes one extraction run against a source database.
type ScanRequest struct {
	ConnectionName string
	Source         source.MetadataSource

	// Schemas restricts extraction; empty means all non-system schemas.
	Schemas []string

	ExtractComments bool
	ParseTags       bool
	Overlay         *source.MetadataOverlay
}

// ScanResult summarizes a completed extraction run and carries the nested
// entity tree for export.
type ScanResult struct {
	SyncID       string
	DatabaseName string
	Database     *models.Entity
	Schemas      []*models.SchemaEntity
	SchemaCount  int
	TableCount   int
	ColumnCount  int
}

// ScanService extracts source metadata, normalizes it into entities, and
// persists the snapshot under a new sync run.
type ScanService interface {
	Scan(ctx context.Context, req ScanRequest) (*ScanResult, error)
}

type scanService struct {
	snapshots     repositories.SnapshotRepository
	tenantID      string
	connectorName string
	logger        *zap.Logger
}

// NewScanService creates a new ScanService.
func NewScanService(snapshots repositories.SnapshotRepository, tenantID, connectorName string, logger *zap.Logger) ScanService {
	return &scanService{
		snapshots:     snapshots,
		tenantID:      tenantID,
		connectorName: connectorName,
		logger:        logger,
	}
}

var _ ScanService = (*scanService)(nil)

func (s *scanService) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	syncID := uuid.New().String()
	now := time.Now().UTC()

	run := &models.SyncRun{
		SyncID:         syncID,
		ConnectorName:  s.connectorName,
		ConnectionName: req.ConnectionName,
		TenantID:       s.tenantID,
		Timestamp:      now,
	}
	if err := s.snapshots.CreateSyncRun(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("Starting extraction",
		zap.String("sync_id", syncID),
		zap.String("connection", req.ConnectionName))

	result, err := s.extract(ctx, req, syncID, now)
	if err != nil {
		msg := err.Error()
		if finErr := s.snapshots.FinalizeSyncRun(ctx, syncID, models.RunStatusFailed, &msg); finErr != nil {
			s.logger.Error("Failed to mark sync run failed", zap.String("sync_id", syncID), zap.Error(finErr))
		}
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	if err := s.snapshots.FinalizeSyncRun(ctx, syncID, models.RunStatusCompleted, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Extraction completed",
		zap.String("sync_id", syncID),
		zap.Int("schemas", result.SchemaCount),
		zap.Int("tables", result.TableCount),
		zap.Int("columns", result.ColumnCount))

	return result, nil
}

func (s *scanService) extract(ctx context.Context, req ScanRequest, syncID string, syncedAt time.Time) (*ScanResult, error) {
	databaseName, err := req.Source.DatabaseName(ctx)
	if err != nil {
		return nil, err
	}

	builder := models.NewEntityBuilder(req.ConnectionName, s.tenantID, s.connectorName, syncID, syncedAt)
	overlay := req.Overlay
	if overlay == nil {
		overlay = &source.MetadataOverlay{}
	}

	rawSchemas, err := req.Source.ListSchemas(ctx, req.Schemas)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		SyncID:       syncID,
		DatabaseName: databaseName,
		Database:     builder.NewDatabase(databaseName),
	}

	var (
		schemaEntities []*models.Entity
		tableEntities  []*models.Entity
		columnEntities []*models.Entity
	)

	for _, rawSchema := range rawSchemas {
		schemaEntity := builder.NewSchema(databaseName, rawSchema.Name)
		if rawSchema.Owner != "" {
			schemaEntity.CustomAttributes["owner"] = rawSchema.Owner
		}
		s.applyComment(schemaEntity.CustomAttributes, rawSchema.Comment, nil, req)

		rawTables, err := req.Source.ListTables(ctx, rawSchema.Name)
		if err != nil {
			s.logger.Warn("Failed to list tables, skipping schema",
				zap.String("schema", rawSchema.Name), zap.Error(err))
			continue
		}

		for _, rawTable := range rawTables {
			extra := map[string]any{}
			s.applyComment(extra, rawTable.Comment, overlay.TableTags(rawSchema.Name, rawTable.Name), req)

			tableEntity := builder.NewTable(databaseName, rawSchema.Name, rawTable.Name, rawTable.TableType, extra)

			rawColumns, err := req.Source.ListColumns(ctx, rawSchema.Name, rawTable.Name)
			if err != nil {
				s.logger.Warn("Failed to list columns, skipping table",
					zap.String("schema", rawSchema.Name),
					zap.String("table", rawTable.Name), zap.Error(err))
				continue
			}

			for _, rawColumn := range rawColumns {
				colExtra := map[string]any{}
				if rawColumn.IsPrimaryKey {
					colExtra["is_primary_key"] = true
				}
				if rawColumn.IsUnique {
					colExtra["is_unique"] = true
				}
				if rawColumn.ForeignKey != nil {
					fk := rawColumn.ForeignKey
					colExtra["foreign_key"] = fk.Schema + "." + fk.Table + "." + fk.Column
				}
				if rawColumn.Default != nil {
					colExtra["column_default"] = *rawColumn.Default
				}
				s.applyComment(colExtra, rawColumn.Comment,
					overlay.ColumnTags(rawSchema.Name, rawTable.Name, rawColumn.Name), req)

				columnEntity := builder.NewColumn(databaseName, rawSchema.Name, rawTable.Name,
					rawColumn.Name, rawColumn.DataType, rawColumn.IsNullable, rawColumn.OrdinalPosition, colExtra)

				tableEntity.Columns = append(tableEntity.Columns, columnEntity)
				columnEntities = append(columnEntities, columnEntity)
			}

			schemaEntity.Tables = append(schemaEntity.Tables, tableEntity)
			tableEntities = append(tableEntities, &tableEntity.Entity)
		}

		result.Schemas = append(result.Schemas, schemaEntity)
		schemaEntities = append(schemaEntities, &schemaEntity.Entity)
	}

	if err := s.snapshots.AppendEntities(ctx, models.KindSchema, schemaEntities); err != nil {
		return nil, err
	}
	if err := s.snapshots.AppendEntities(ctx, models.KindTable, tableEntities); err != nil {
		return nil, err
	}
	if err := s.snapshots.AppendEntities(ctx, models.KindColumn, columnEntities); err != nil {
		return nil, err
	}

	result.SchemaCount = len(schemaEntities)
	result.TableCount = len(tableEntities)
	result.ColumnCount = len(columnEntities)
	return result, nil
}

// applyComment records a comment and its tags into custom attributes,
// merging inline comment tags with overlay tags. Absent facts are never
// written, keeping custom attributes sparse.
func (s *scanService) applyComment(custom map[string]any, comment string, overlayTags []string, req ScanRequest) {
	var tags []string
	if req.ExtractComments && comment != "" {
		clean := comment
		if req.ParseTags {
			clean, tags = source.ParseCommentTags(comment)
		}
		if clean != "" {
			custom["comment"] = clean
		}
	}

	tags = append(tags, overlayTags...)
	if len(tags) > 0 {
		custom["tags"] = models.CanonicalTags(tags)
	}
}
