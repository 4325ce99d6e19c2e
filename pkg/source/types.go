// Package source defines the raw metadata shapes produced by source-database
// discovery, before normalization into entities.
package source

import (
	"context"

	"github.com/meridian-data/catalogd/pkg/models"
)

// RawSchema is a schema as discovered on the source database.
type RawSchema struct {
	Name    string
	Owner   string
	Comment string
}

// RawTable is a table or view as discovered on the source database.
type RawTable struct {
	SchemaName string
	Name       string
	TableType  string // BASE TABLE or VIEW
	Comment    string
}

// ForeignKeyRef identifies the column a foreign key points at.
type ForeignKeyRef struct {
	Schema string
	Table  string
	Column string
}

// RawColumn is a column as discovered on the source database, including
// constraint participation and its comment.
type RawColumn struct {
	SchemaName      string
	TableName       string
	Name            string
	DataType        string
	IsNullable      bool
	OrdinalPosition int
	Default         *string
	IsPrimaryKey    bool
	IsUnique        bool
	ForeignKey      *ForeignKeyRef
	Comment         string
}

// MetadataSource discovers structural metadata from a source database.
type MetadataSource interface {
	DatabaseName(ctx context.Context) (string, error)
	// ListSchemas returns non-system schemas. A non-empty include list
	// restricts the result to the named schemas.
	ListSchemas(ctx context.Context, include []string) ([]*RawSchema, error)
	ListTables(ctx context.Context, schemaName string) ([]*RawTable, error)
	ListColumns(ctx context.Context, schemaName, tableName string) ([]*RawColumn, error)
}

// QualitySource computes data-quality statistics from a source database.
type QualitySource interface {
	RowCount(ctx context.Context, schemaName, tableName string) (int64, error)
	ColumnMetrics(ctx context.Context, schemaName, tableName, columnName string) (*models.ColumnQualityMetrics, error)
}
