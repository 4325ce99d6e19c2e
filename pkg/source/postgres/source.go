// Package postgres implements metadata discovery and quality sampling
// against a PostgreSQL source database.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/source"
)

// Source reads catalog metadata and quality statistics from one PostgreSQL
// database over a pgx pool. It implements both source.MetadataSource and
// source.QualitySource.
type Source struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	topK        int
	sampleLimit int
}

// Option configures a Source.
type Option func(*Source)

// WithQualitySampling sets the top-K value count and the per-column sample
// limit used by quality extraction.
func WithQualitySampling(topK, sampleLimit int) Option {
	return func(s *Source) {
		s.topK = topK
		s.sampleLimit = sampleLimit
	}
}

// NewSource creates a Source over an existing pool. The pool stays owned by
// the caller.
func NewSource(pool *pgxpool.Pool, logger *zap.Logger, opts ...Option) *Source {
	s := &Source{
		pool:        pool,
		logger:      logger,
		topK:        10,
		sampleLimit: 10000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ source.MetadataSource = (*Source)(nil)
	_ source.QualitySource  = (*Source)(nil)
)

// DatabaseName returns the name of the connected database.
func (s *Source) DatabaseName(ctx context.Context) (string, error) {
	var name string
	if err := s.pool.QueryRow(ctx, `SELECT current_database()`).Scan(&name); err != nil {
		return "", fmt.Errorf("failed to get database name: %w", err)
	}
	return name, nil
}

func (s *Source) ListSchemas(ctx context.Context, include []string) ([]*source.RawSchema, error) {
	query := `
		SELECT n.nspname,
		       pg_get_userbyid(n.nspowner),
		       COALESCE(obj_description(n.oid, 'pg_namespace'), '')
		FROM pg_namespace n
		WHERE n.nspname NOT LIKE 'pg\_%'
		  AND n.nspname <> 'information_schema'`

	args := []any{}
	if len(include) > 0 {
		query += ` AND n.nspname = ANY($1)`
		args = append(args, include)
	}
	query += ` ORDER BY n.nspname`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	schemas := make([]*source.RawSchema, 0)
	for rows.Next() {
		var sc source.RawSchema
		if err := rows.Scan(&sc.Name, &sc.Owner, &sc.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		schemas = append(schemas, &sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schemas: %w", err)
	}

	return schemas, nil
}

func (s *Source) ListTables(ctx context.Context, schemaName string) ([]*source.RawTable, error) {
	query := `
		SELECT t.table_name,
		       t.table_type,
		       COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM information_schema.tables t
		JOIN pg_namespace n ON n.nspname = t.table_schema
		JOIN pg_class c ON c.relnamespace = n.oid AND c.relname = t.table_name
		WHERE t.table_schema = $1
		  AND t.table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY t.table_name`

	rows, err := s.pool.Query(ctx, query, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", schemaName, err)
	}
	defer rows.Close()

	tables := make([]*source.RawTable, 0)
	for rows.Next() {
		t := &source.RawTable{SchemaName: schemaName}
		if err := rows.Scan(&t.Name, &t.TableType, &t.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

func (s *Source) ListColumns(ctx context.Context, schemaName, tableName string) ([]*source.RawColumn, error) {
	query := `
		SELECT c.column_name,
		       c.data_type,
		       c.is_nullable = 'YES',
		       c.ordinal_position,
		       c.column_default,
		       COALESCE(col_description(cl.oid, c.ordinal_position), '')
		FROM information_schema.columns c
		JOIN pg_namespace n ON n.nspname = c.table_schema
		JOIN pg_class cl ON cl.relnamespace = n.oid AND cl.relname = c.table_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	rows, err := s.pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	columns := make([]*source.RawColumn, 0)
	for rows.Next() {
		c := &source.RawColumn{SchemaName: schemaName, TableName: tableName}
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.OrdinalPosition, &c.Default, &c.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	rows.Close()

	if err := s.annotateConstraints(ctx, schemaName, tableName, columns); err != nil {
		return nil, err
	}

	return columns, nil
}

// annotateConstraints fills primary key, unique, and foreign key facts onto
// already-listed columns.
func (s *Source) annotateConstraints(ctx context.Context, schemaName, tableName string, columns []*source.RawColumn) error {
	byName := make(map[string]*source.RawColumn, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}

	indexQuery := `
		SELECT a.attname, i.indisprimary
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE n.nspname = $1 AND c.relname = $2 AND i.indisunique`

	rows, err := s.pool.Query(ctx, indexQuery, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("failed to read indexes of %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name      string
			isPrimary bool
		)
		if err := rows.Scan(&name, &isPrimary); err != nil {
			return fmt.Errorf("failed to scan index column: %w", err)
		}
		col, ok := byName[name]
		if !ok {
			continue
		}
		if isPrimary {
			col.IsPrimaryKey = true
		} else {
			col.IsUnique = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating index columns: %w", err)
	}
	rows.Close()

	fkQuery := `
		SELECT kcu.column_name, ccu.table_schema, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.constraint_schema = tc.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2`

	fkRows, err := s.pool.Query(ctx, fkQuery, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("failed to read foreign keys of %s.%s: %w", schemaName, tableName, err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var (
			name string
			ref  source.ForeignKeyRef
		)
		if err := fkRows.Scan(&name, &ref.Schema, &ref.Table, &ref.Column); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if col, ok := byName[name]; ok {
			col.ForeignKey = &ref
		}
	}
	if err := fkRows.Err(); err != nil {
		return fmt.Errorf("error iterating foreign keys: %w", err)
	}

	return nil
}
