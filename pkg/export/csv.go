package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/models"
)

// CSVWriter writes flat per-kind CSV files for a sync run's snapshot.
type CSVWriter struct {
	dir    string
	logger *zap.Logger
}

// NewCSVWriter creates a writer rooted at dir. The directory is created on
// first write.
func NewCSVWriter(dir string, logger *zap.Logger) *CSVWriter {
	return &CSVWriter{dir: dir, logger: logger}
}

// WriteSnapshot writes schemas, tables, and columns as three CSV files and
// returns their paths.
func (w *CSVWriter) WriteSnapshot(syncID string, schemas []*models.SchemaEntity) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", w.dir, err)
	}

	schemaRows := [][]string{{"schema_name", "qualified_name", "owner", "comment", "tags"}}
	tableRows := [][]string{{"schema_name", "table_name", "table_type", "qualified_name", "comment", "tags"}}
	columnRows := [][]string{{"schema_name", "table_name", "column_name", "data_type", "is_nullable", "ordinal_position", "is_primary_key", "foreign_key", "comment", "tags"}}

	for _, schema := range schemas {
		schemaRows = append(schemaRows, []string{
			schema.Name,
			attrString(schema.Attributes, "qualifiedName"),
			attrString(schema.CustomAttributes, "owner"),
			attrString(schema.CustomAttributes, "comment"),
			tagString(schema.CustomAttributes),
		})

		for _, table := range schema.Tables {
			tableRows = append(tableRows, []string{
				schema.Name,
				table.Name,
				attrString(table.CustomAttributes, "table_type"),
				attrString(table.Attributes, "qualifiedName"),
				attrString(table.CustomAttributes, "comment"),
				tagString(table.CustomAttributes),
			})

			for _, column := range table.Columns {
				columnRows = append(columnRows, []string{
					schema.Name,
					table.Name,
					column.Name,
					attrString(column.Attributes, "dataType"),
					fmt.Sprintf("%v", column.Attributes["isNullable"]),
					fmt.Sprintf("%v", column.CustomAttributes["ordinal_position"]),
					fmt.Sprintf("%v", column.CustomAttributes["is_primary_key"] == true),
					attrString(column.CustomAttributes, "foreign_key"),
					attrString(column.CustomAttributes, "comment"),
					tagString(column.CustomAttributes),
				})
			}
		}
	}

	files := map[string][][]string{
		fmt.Sprintf("%s_schemas.csv", syncID): schemaRows,
		fmt.Sprintf("%s_tables.csv", syncID):  tableRows,
		fmt.Sprintf("%s_columns.csv", syncID): columnRows,
	}

	paths := make([]string, 0, len(files))
	for _, name := range []string{
		fmt.Sprintf("%s_schemas.csv", syncID),
		fmt.Sprintf("%s_tables.csv", syncID),
		fmt.Sprintf("%s_columns.csv", syncID),
	} {
		path := filepath.Join(w.dir, name)
		if err := writeCSV(path, files[name]); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	w.logger.Info("Wrote CSV export", zap.String("dir", w.dir), zap.Strings("files", paths))
	return paths, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func attrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func tagString(custom map[string]any) string {
	switch tags := custom["tags"].(type) {
	case []string:
		return strings.Join(tags, ",")
	case []any:
		parts := make([]string, 0, len(tags))
		for _, t := range tags {
			parts = append(parts, fmt.Sprintf("%v", t))
		}
		return strings.Join(parts, ",")
	}
	return ""
}
