package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/models"
	"github.com/meridian-data/catalogd/pkg/repositories"
)

// SnapshotTree is a persisted snapshot reassembled into the nested
// database -> schemas -> tables -> columns shape the exporters consume.
type SnapshotTree struct {
	SyncID       string
	DatabaseName string
	Database     *models.Entity
	Schemas      []*models.SchemaEntity
	SchemaCount  int
	TableCount   int
	ColumnCount  int
}

// SnapshotService reads persisted snapshots back out of the store.
type SnapshotService interface {
	// AssembleTree loads all entities of a sync run and rebuilds the nested
	// ownership tree from their parent-linkage attributes.
	AssembleTree(ctx context.Context, syncID string) (*SnapshotTree, error)
}

type snapshotService struct {
	snapshots repositories.SnapshotRepository
	logger    *zap.Logger
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(snapshots repositories.SnapshotRepository, logger *zap.Logger) SnapshotService {
	return &snapshotService{snapshots: snapshots, logger: logger}
}

var _ SnapshotService = (*snapshotService)(nil)

func (s *snapshotService) AssembleTree(ctx context.Context, syncID string) (*SnapshotTree, error) {
	run, err := s.snapshots.GetSyncRun(ctx, syncID)
	if err != nil {
		return nil, err
	}

	schemas, err := s.snapshots.LoadEntities(ctx, syncID, models.KindSchema)
	if err != nil {
		return nil, err
	}
	tables, err := s.snapshots.LoadEntities(ctx, syncID, models.KindTable)
	if err != nil {
		return nil, err
	}
	columns, err := s.snapshots.LoadEntities(ctx, syncID, models.KindColumn)
	if err != nil {
		return nil, err
	}

	columnsByTable := make(map[models.EntityKey][]*models.Entity)
	for _, c := range columns {
		parent := models.EntityKey{SchemaName: c.Key.SchemaName, Name: c.Key.TableName}
		columnsByTable[parent] = append(columnsByTable[parent], c.Entity)
	}

	tablesBySchema := make(map[string][]*models.TableEntity)
	for _, t := range tables {
		tablesBySchema[t.Key.SchemaName] = append(tablesBySchema[t.Key.SchemaName],
			&models.TableEntity{Entity: *t.Entity, Columns: columnsByTable[t.Key]})
	}

	tree := &SnapshotTree{
		SyncID:      syncID,
		SchemaCount: len(schemas),
		TableCount:  len(tables),
		ColumnCount: len(columns),
	}
	for _, sc := range schemas {
		tree.Schemas = append(tree.Schemas,
			&models.SchemaEntity{Entity: *sc.Entity, Tables: tablesBySchema[sc.Key.Name]})
	}

	// The database record is not snapshotted as a diffable kind; rebuild it
	// from the run context and the schemas' parent linkage.
	if len(schemas) > 0 {
		if dbName, ok := schemas[0].Attributes["databaseName"].(string); ok {
			builder := models.NewEntityBuilder(run.ConnectionName, run.TenantID, run.ConnectorName, syncID, run.Timestamp)
			tree.DatabaseName = dbName
			tree.Database = builder.NewDatabase(dbName)
		}
	}

	s.logger.Info("Assembled snapshot tree",
		zap.String("sync_id", syncID),
		zap.Int("schemas", tree.SchemaCount),
		zap.Int("tables", tree.TableCount),
		zap.Int("columns", tree.ColumnCount))

	return tree, nil
}
