package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/models"
)

// mockSnapshotRepo implements repositories.SnapshotRepository for testing.
type mockSnapshotRepo struct {
	runs     []*models.SyncRun
	entities map[string]map[models.EntityKind][]*models.SnapshotEntity

	listErr error
	loadErr error
}

func (m *mockSnapshotRepo) CreateSyncRun(_ context.Context, run *models.SyncRun) error {
	run.Status = models.RunStatusRunning
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockSnapshotRepo) FinalizeSyncRun(_ context.Context, syncID string, status models.RunStatus, errorMessage *string) error {
	for _, r := range m.runs {
		if r.SyncID == syncID {
			if r.Status.Terminal() {
				return apperrors.ErrRunFinalized
			}
			r.Status = status
			r.ErrorMessage = errorMessage
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockSnapshotRepo) GetSyncRun(_ context.Context, syncID string) (*models.SyncRun, error) {
	for _, r := range m.runs {
		if r.SyncID == syncID {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSnapshotRepo) ListRecentSyncRuns(_ context.Context, connectionName string, limit int) ([]*models.SyncRun, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.SyncRun
	for _, r := range m.runs {
		if r.ConnectionName == connectionName && r.Status == models.RunStatusCompleted {
			result = append(result, r)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockSnapshotRepo) AppendEntities(_ context.Context, kind models.EntityKind, entities []*models.Entity) error {
	return nil
}

func (m *mockSnapshotRepo) LoadEntities(_ context.Context, syncID string, kind models.EntityKind) ([]*models.SnapshotEntity, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.entities[syncID][kind], nil
}

// mockDiffRepo implements repositories.DiffRepository for testing.
type mockDiffRepo struct {
	created  []*models.DiffRun
	written  []*models.DiffRecord
	counts   models.ChangeCounts
	failedID string
	failMsg  string

	createErr error
	writeErr  error
}

func (m *mockDiffRepo) CreateRun(_ context.Context, run *models.DiffRun) error {
	if m.createErr != nil {
		return m.createErr
	}
	run.Status = models.RunStatusRunning
	m.created = append(m.created, run)
	return nil
}

func (m *mockDiffRepo) WriteRun(_ context.Context, diffSyncID string, records []*models.DiffRecord, counts models.ChangeCounts) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, records...)
	m.counts = counts
	return nil
}

func (m *mockDiffRepo) MarkFailed(_ context.Context, diffSyncID string, errorMessage string) error {
	m.failedID = diffSyncID
	m.failMsg = errorMessage
	return nil
}

func (m *mockDiffRepo) GetRun(_ context.Context, diffSyncID string) (*models.DiffRun, error) {
	for _, r := range m.created {
		if r.DiffSyncID == diffSyncID {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDiffRepo) ListRecords(_ context.Context, diffSyncID string, kind models.EntityKind) ([]*models.DiffRecord, error) {
	var result []*models.DiffRecord
	for _, r := range m.written {
		if r.DiffSyncID == diffSyncID && r.Kind == kind {
			result = append(result, r)
		}
	}
	return result, nil
}

// ============================================================================
// Fixtures
// ============================================================================

func completedRun(syncID, connection string, at time.Time) *models.SyncRun {
	return &models.SyncRun{
		SyncID:         syncID,
		ConnectorName:  "postgres",
		ConnectionName: connection,
		TenantID:       "default",
		Status:         models.RunStatusCompleted,
		Timestamp:      at,
	}
}

func tableSnapshot(schemaName, tableName string, custom map[string]any) *models.SnapshotEntity {
	attrs := map[string]any{
		"schemaName": schemaName,
		"tableName":  tableName,
	}
	return &models.SnapshotEntity{
		Key:              models.EntityKey{SchemaName: schemaName, Name: tableName},
		Attributes:       attrs,
		CustomAttributes: custom,
		Record: map[string]any{
			"typeName":         string(models.KindTable),
			"name":             tableName,
			"attributes":       attrs,
			"customAttributes": custom,
		},
	}
}

func twoRunRepo(older, newer map[models.EntityKind][]*models.SnapshotEntity) *mockSnapshotRepo {
	now := time.Now()
	return &mockSnapshotRepo{
		runs: []*models.SyncRun{
			completedRun("sync-2", "prod", now),
			completedRun("sync-1", "prod", now.Add(-time.Hour)),
		},
		entities: map[string]map[models.EntityKind][]*models.SnapshotEntity{
			"sync-1": older,
			"sync-2": newer,
		},
	}
}

// ============================================================================
// RunIncrementalDiff
// ============================================================================

func TestDiffService_InsufficientHistory(t *testing.T) {
	snapshots := &mockSnapshotRepo{
		runs: []*models.SyncRun{completedRun("sync-1", "prod", time.Now())},
	}
	diffs := &mockDiffRepo{}
	svc := NewDiffService(snapshots, diffs, zap.NewNop())

	_, err := svc.RunIncrementalDiff(context.Background(), "prod")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientHistory)
	assert.Empty(t, diffs.created, "no diff run should be created without history")
}

func TestDiffService_ClassifiesChanges(t *testing.T) {
	older := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {
			tableSnapshot("public", "unchanged", map[string]any{"table_type": "BASE TABLE"}),
			tableSnapshot("public", "modified", map[string]any{"comment": "old text"}),
			tableSnapshot("public", "dropped", map[string]any{"table_type": "BASE TABLE"}),
		},
	}
	newer := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {
			tableSnapshot("public", "unchanged", map[string]any{"table_type": "BASE TABLE"}),
			tableSnapshot("public", "modified", map[string]any{"comment": "new text"}),
			tableSnapshot("public", "created", map[string]any{"table_type": "BASE TABLE"}),
		},
	}

	diffs := &mockDiffRepo{}
	svc := NewDiffService(twoRunRepo(older, newer), diffs, zap.NewNop())

	summary, err := svc.RunIncrementalDiff(context.Background(), "prod")
	require.NoError(t, err)

	assert.Equal(t, "sync-1", summary.OlderSyncID)
	assert.Equal(t, "sync-2", summary.NewerSyncID)
	assert.Equal(t, 3, summary.Counts.Tables)
	assert.Equal(t, 0, summary.Counts.Schemas)
	assert.Equal(t, 3, summary.Counts.Total())

	byName := map[string]*models.DiffRecord{}
	for _, r := range diffs.written {
		byName[r.Key.Name] = r
	}

	require.Len(t, diffs.written, 3, "unchanged entities must not be persisted")
	require.NotContains(t, byName, "unchanged")

	added := byName["created"]
	require.NotNil(t, added)
	assert.Equal(t, models.ChangeTypeAdded, added.ChangeType)
	assert.Nil(t, added.SnapshotOlder)
	assert.NotNil(t, added.SnapshotNewer)

	removed := byName["dropped"]
	require.NotNil(t, removed)
	assert.Equal(t, models.ChangeTypeRemoved, removed.ChangeType)
	assert.NotNil(t, removed.SnapshotOlder)
	assert.Nil(t, removed.SnapshotNewer)

	modified := byName["modified"]
	require.NotNil(t, modified)
	assert.Equal(t, models.ChangeTypeModified, modified.ChangeType)
	require.Contains(t, modified.Differences, "custom_attributes.comment")
	change := modified.Differences["custom_attributes.comment"]
	assert.Equal(t, "old text", change.Old)
	assert.Equal(t, "new text", change.New)
}

func TestDiffService_FieldPresentOnOneSide(t *testing.T) {
	older := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {tableSnapshot("public", "users", map[string]any{"comment": "people"})},
	}
	newer := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {tableSnapshot("public", "users", map[string]any{"tags": []any{"pii"}})},
	}

	diffs := &mockDiffRepo{}
	svc := NewDiffService(twoRunRepo(older, newer), diffs, zap.NewNop())

	_, err := svc.RunIncrementalDiff(context.Background(), "prod")
	require.NoError(t, err)
	require.Len(t, diffs.written, 1)

	differences := diffs.written[0].Differences
	require.Contains(t, differences, "custom_attributes.comment")
	assert.Equal(t, "people", differences["custom_attributes.comment"].Old)
	assert.Nil(t, differences["custom_attributes.comment"].New)

	require.Contains(t, differences, "custom_attributes.tags")
	assert.Nil(t, differences["custom_attributes.tags"].Old)
	assert.Equal(t, []any{"pii"}, differences["custom_attributes.tags"].New)
}

func TestDiffService_NumericValuesCompareByValue(t *testing.T) {
	older := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {tableSnapshot("public", "users", map[string]any{"ordinal_position": float64(3)})},
	}
	newer := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {tableSnapshot("public", "users", map[string]any{"ordinal_position": 3})},
	}

	diffs := &mockDiffRepo{}
	svc := NewDiffService(twoRunRepo(older, newer), diffs, zap.NewNop())

	summary, err := svc.RunIncrementalDiff(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Counts.Total())
	assert.Empty(t, diffs.written)
}

func TestDiffService_IdentityCollisionAborts(t *testing.T) {
	older := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {
			tableSnapshot("public", "users", nil),
			tableSnapshot("public", "users", nil),
		},
	}
	newer := map[models.EntityKind][]*models.SnapshotEntity{}

	diffs := &mockDiffRepo{}
	svc := NewDiffService(twoRunRepo(older, newer), diffs, zap.NewNop())

	_, err := svc.RunIncrementalDiff(context.Background(), "prod")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrIdentityCollision)
	assert.Empty(t, diffs.written)
	require.Len(t, diffs.created, 1)
	assert.Equal(t, diffs.created[0].DiffSyncID, diffs.failedID, "failed run must be marked")
}

func TestDiffService_WriteFailureMarksRunFailed(t *testing.T) {
	older := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {tableSnapshot("public", "users", map[string]any{"comment": "a"})},
	}
	newer := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {tableSnapshot("public", "users", map[string]any{"comment": "b"})},
	}

	diffs := &mockDiffRepo{writeErr: errors.New("store unavailable")}
	svc := NewDiffService(twoRunRepo(older, newer), diffs, zap.NewNop())

	_, err := svc.RunIncrementalDiff(context.Background(), "prod")
	require.Error(t, err)
	require.Len(t, diffs.created, 1)
	assert.Equal(t, diffs.created[0].DiffSyncID, diffs.failedID)
	assert.Contains(t, diffs.failMsg, "store unavailable")
}

func TestDiffService_DeterministicRecordOrder(t *testing.T) {
	newerTables := []*models.SnapshotEntity{
		tableSnapshot("sales", "orders", nil),
		tableSnapshot("public", "zebra", nil),
		tableSnapshot("public", "apple", nil),
	}
	older := map[models.EntityKind][]*models.SnapshotEntity{}
	newer := map[models.EntityKind][]*models.SnapshotEntity{models.KindTable: newerTables}

	diffs := &mockDiffRepo{}
	svc := NewDiffService(twoRunRepo(older, newer), diffs, zap.NewNop())

	_, err := svc.RunIncrementalDiff(context.Background(), "prod")
	require.NoError(t, err)
	require.Len(t, diffs.written, 3)

	got := make([]string, 0, 3)
	for _, r := range diffs.written {
		got = append(got, fmt.Sprintf("%s.%s", r.Key.SchemaName, r.Key.Name))
	}
	assert.Equal(t, []string{"public.apple", "public.zebra", "sales.orders"}, got)
}

func TestDiffService_SwappedRunsMirrorClassification(t *testing.T) {
	first := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {
			tableSnapshot("public", "dropped", map[string]any{"table_type": "BASE TABLE"}),
			tableSnapshot("public", "edited", map[string]any{"comment": "a"}),
			tableSnapshot("public", "same", map[string]any{"table_type": "BASE TABLE"}),
		},
	}
	second := map[models.EntityKind][]*models.SnapshotEntity{
		models.KindTable: {
			tableSnapshot("public", "created", map[string]any{"table_type": "BASE TABLE"}),
			tableSnapshot("public", "edited", map[string]any{"comment": "b"}),
			tableSnapshot("public", "same", map[string]any{"table_type": "BASE TABLE"}),
		},
	}

	forward := &mockDiffRepo{}
	_, err := NewDiffService(twoRunRepo(first, second), forward, zap.NewNop()).
		RunIncrementalDiff(context.Background(), "prod")
	require.NoError(t, err)

	reverse := &mockDiffRepo{}
	_, err = NewDiffService(twoRunRepo(second, first), reverse, zap.NewNop()).
		RunIncrementalDiff(context.Background(), "prod")
	require.NoError(t, err)

	classify := func(records []*models.DiffRecord) map[string]models.ChangeType {
		out := make(map[string]models.ChangeType, len(records))
		for _, r := range records {
			out[r.Key.Name] = r.ChangeType
		}
		return out
	}
	fwd, rev := classify(forward.written), classify(reverse.written)

	require.Len(t, forward.written, 3)
	require.Len(t, reverse.written, 3)

	// Added and removed swap exactly; modified and unchanged are unchanged.
	assert.Equal(t, models.ChangeTypeAdded, fwd["created"])
	assert.Equal(t, models.ChangeTypeRemoved, rev["created"])
	assert.Equal(t, models.ChangeTypeRemoved, fwd["dropped"])
	assert.Equal(t, models.ChangeTypeAdded, rev["dropped"])
	assert.Equal(t, models.ChangeTypeModified, fwd["edited"])
	assert.Equal(t, models.ChangeTypeModified, rev["edited"])
	assert.NotContains(t, fwd, "same")
	assert.NotContains(t, rev, "same")

	find := func(records []*models.DiffRecord, name string) *models.DiffRecord {
		for _, r := range records {
			if r.Key.Name == name {
				return r
			}
		}
		return nil
	}
	fwdEdit := find(forward.written, "edited")
	revEdit := find(reverse.written, "edited")
	require.NotNil(t, fwdEdit)
	require.NotNil(t, revEdit)

	fwdChange := fwdEdit.Differences["custom_attributes.comment"]
	revChange := revEdit.Differences["custom_attributes.comment"]
	assert.Equal(t, fwdChange.Old, revChange.New, "old and new swap with run order")
	assert.Equal(t, fwdChange.New, revChange.Old)
}

// ============================================================================
// valueEqual
// ============================================================================

func TestValueEqual_NestedStructures(t *testing.T) {
	a := map[string]any{
		"database": map[string]any{
			"uniqueAttributes": map[string]any{"qualifiedName": "t/pg/db"},
		},
		"order": 1,
	}
	b := map[string]any{
		"database": map[string]any{
			"uniqueAttributes": map[string]any{"qualifiedName": "t/pg/db"},
		},
		"order": float64(1),
	}
	assert.True(t, valueEqual(a, b))

	b["database"].(map[string]any)["uniqueAttributes"].(map[string]any)["qualifiedName"] = "t/pg/other"
	assert.False(t, valueEqual(a, b))
}

func TestValueEqual_TagSlices(t *testing.T) {
	assert.True(t, valueEqual([]string{"a", "b"}, []any{"a", "b"}))
	assert.False(t, valueEqual([]string{"a", "b"}, []any{"b", "a"}))
	assert.False(t, valueEqual([]any{"a"}, []any{"a", "b"}))
}
