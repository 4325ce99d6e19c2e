package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/models"
)

func snapshotFixture() (*models.Entity, []*models.SchemaEntity) {
	b := models.NewEntityBuilder("prod", "default", "postgres", "sync-1",
		time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	db := b.NewDatabase("shop")
	schema := b.NewSchema("shop", "public")
	table := b.NewTable("shop", "public", "users", "BASE TABLE", map[string]any{
		"comment": "Customer accounts",
		"tags":    []string{"core", "pii"},
	})
	table.Columns = append(table.Columns,
		b.NewColumn("shop", "public", "users", "id", "integer", false, 1, map[string]any{
			"is_primary_key": true,
		}))
	schema.Tables = append(schema.Tables, table)

	return db, []*models.SchemaEntity{schema}
}

func TestJSONWriter_WriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	db, schemas := snapshotFixture()

	path, err := NewJSONWriter(dir, zap.NewNop()).WriteSnapshot("sync-1", db, schemas)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "sync-1", doc["syncId"])

	docSchemas, ok := doc["schemas"].([]any)
	require.True(t, ok)
	require.Len(t, docSchemas, 1)

	schema := docSchemas[0].(map[string]any)
	assert.Equal(t, "Schema", schema["typeName"])

	tables := schema["tables"].([]any)
	require.Len(t, tables, 1)
	table := tables[0].(map[string]any)
	columns := table["columns"].([]any)
	require.Len(t, columns, 1)
	assert.Equal(t, "id", columns[0].(map[string]any)["name"])
}

func TestJSONWriter_WriteDiff(t *testing.T) {
	dir := t.TempDir()
	summary := &models.DiffSummary{
		DiffSyncID:   "diff-1",
		ConnectionID: "prod",
		OlderSyncID:  "sync-1",
		NewerSyncID:  "sync-2",
		Counts:       models.ChangeCounts{Tables: 1},
	}
	records := []*models.DiffRecord{{
		DiffSyncID: "diff-1",
		Kind:       models.KindTable,
		Key:        models.EntityKey{SchemaName: "public", Name: "users"},
		ChangeType: models.ChangeTypeModified,
		Differences: map[string]models.FieldChange{
			"custom_attributes.comment": {Old: "a", New: "b"},
		},
	}}

	path, err := NewJSONWriter(dir, zap.NewNop()).WriteDiff(summary, records)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	gotSummary := doc["summary"].(map[string]any)
	assert.Equal(t, "diff-1", gotSummary["diffSyncId"])

	gotRecords := doc["records"].([]any)
	require.Len(t, gotRecords, 1)
	rec := gotRecords[0].(map[string]any)
	assert.Equal(t, "modified", rec["changeType"])
	diffs := rec["differences"].(map[string]any)
	assert.Contains(t, diffs, "custom_attributes.comment")
}

func TestCSVWriter_WriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	_, schemas := snapshotFixture()

	paths, err := NewCSVWriter(dir, zap.NewNop()).WriteSnapshot("sync-1", schemas)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	f, err := os.Open(paths[2]) // columns file
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	header := rows[0]
	assert.Equal(t, "column_name", header[2])

	row := rows[1]
	assert.Equal(t, "public", row[0])
	assert.Equal(t, "users", row[1])
	assert.Equal(t, "id", row[2])
	assert.Equal(t, "integer", row[3])
	assert.Equal(t, "true", row[6], "primary key flag")
}

func TestCSVWriter_TagsJoined(t *testing.T) {
	dir := t.TempDir()
	_, schemas := snapshotFixture()

	paths, err := NewCSVWriter(dir, zap.NewNop()).WriteSnapshot("sync-1", schemas)
	require.NoError(t, err)

	f, err := os.Open(paths[1]) // tables file
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "core,pii", rows[1][5])
}
