package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/models"
)

// mockQualityRepo implements repositories.QualityRepository for testing.
type mockQualityRepo struct {
	nextRunID int64
	runs      []*models.QualityRun
	written   []*models.TableQualityMetrics
	failedID  int64
	failMsg   string

	writeErr error
}

func (m *mockQualityRepo) CreateRun(_ context.Context, run *models.QualityRun) error {
	m.nextRunID++
	run.RunID = m.nextRunID
	run.Status = models.RunStatusRunning
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockQualityRepo) WriteMetrics(_ context.Context, runID int64, tables []*models.TableQualityMetrics, durationSeconds float64) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, tables...)
	return nil
}

func (m *mockQualityRepo) MarkFailed(_ context.Context, runID int64, errorMessage string) error {
	m.failedID = runID
	m.failMsg = errorMessage
	return nil
}

func (m *mockQualityRepo) GetRunBySyncID(_ context.Context, syncID string) (*models.QualityRun, error) {
	for _, r := range m.runs {
		if r.SyncID == syncID {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockQualityRepo) ListTableMetrics(_ context.Context, runID int64) ([]*models.TableQualityMetrics, error) {
	return m.written, nil
}

// mockQualitySource implements source.QualitySource for testing.
type mockQualitySource struct {
	rowCounts map[string]int64
	metrics   map[string]*models.ColumnQualityMetrics

	rowCountErr error
}

func (m *mockQualitySource) RowCount(_ context.Context, schemaName, tableName string) (int64, error) {
	if m.rowCountErr != nil {
		return 0, m.rowCountErr
	}
	return m.rowCounts[schemaName+"."+tableName], nil
}

func (m *mockQualitySource) ColumnMetrics(_ context.Context, schemaName, tableName, columnName string) (*models.ColumnQualityMetrics, error) {
	key := schemaName + "." + tableName + "." + columnName
	if cm, ok := m.metrics[key]; ok {
		return cm, nil
	}
	return &models.ColumnQualityMetrics{ColumnName: columnName}, nil
}

func columnSnapshot(schemaName, tableName, columnName string) *models.SnapshotEntity {
	return &models.SnapshotEntity{
		Key: models.EntityKey{SchemaName: schemaName, TableName: tableName, Name: columnName},
		Attributes: map[string]any{
			"schemaName": schemaName,
			"tableName":  tableName,
		},
	}
}

func qualitySnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{
		runs: []*models.SyncRun{completedRun("sync-1", "prod", time.Now())},
		entities: map[string]map[models.EntityKind][]*models.SnapshotEntity{
			"sync-1": {
				models.KindTable: {
					tableSnapshot("public", "users", nil),
				},
				models.KindColumn: {
					columnSnapshot("public", "users", "id"),
					columnSnapshot("public", "users", "nickname"),
					columnSnapshot("public", "users", "country"),
				},
			},
		},
	}
}

// ============================================================================
// ExtractMetrics
// ============================================================================

func TestQualityService_ExtractMetrics(t *testing.T) {
	src := &mockQualitySource{
		rowCounts: map[string]int64{"public.users": 500},
		metrics: map[string]*models.ColumnQualityMetrics{
			"public.users.id": {
				ColumnName: "id", TotalCount: 500, NonNullCount: 500,
				DistinctCount: 500, DistinctPercentage: 100,
			},
			"public.users.nickname": {
				ColumnName: "nickname", TotalCount: 500, NonNullCount: 100,
				NullCount: 400, NullPercentage: 80,
				DistinctCount: 90, DistinctPercentage: 18,
			},
			"public.users.country": {
				ColumnName: "country", TotalCount: 500, NonNullCount: 500,
				DistinctCount: 12, DistinctPercentage: 2.4,
			},
		},
	}

	quality := &mockQualityRepo{}
	svc := NewQualityService(qualitySnapshotRepo(), quality, zap.NewNop())

	summary, err := svc.ExtractMetrics(context.Background(), "sync-1", src, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalTables)
	assert.Equal(t, 3, summary.TotalColumns)
	assert.Equal(t, 1, summary.HighNullColumns, "nickname is 80% null")
	assert.Equal(t, 1, summary.LowDistinctColumns, "country is 2.4% distinct on 500 rows")
	// 100 - 30*(1/3) - 20*(1/3) = 83.333..., rounded to one decimal
	assert.InDelta(t, 83.3, summary.Score, 0.001)

	require.Len(t, quality.written, 1)
	assert.Equal(t, int64(500), quality.written[0].RowCount)
	assert.Len(t, quality.written[0].ColumnMetrics, 3)
}

func TestQualityService_SchemaFilter(t *testing.T) {
	src := &mockQualitySource{rowCounts: map[string]int64{"public.users": 10}}
	quality := &mockQualityRepo{}
	svc := NewQualityService(qualitySnapshotRepo(), quality, zap.NewNop())

	summary, err := svc.ExtractMetrics(context.Background(), "sync-1", src, []string{"sales"})
	require.NoError(t, err)
	assert.Zero(t, summary.TotalTables)
	assert.Zero(t, summary.TotalColumns)
	assert.Equal(t, 100.0, summary.Score)
}

func TestQualityService_SourceFailureMarksRunFailed(t *testing.T) {
	src := &mockQualitySource{rowCountErr: errors.New("connection reset")}
	quality := &mockQualityRepo{}
	svc := NewQualityService(qualitySnapshotRepo(), quality, zap.NewNop())

	_, err := svc.ExtractMetrics(context.Background(), "sync-1", src, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), quality.failedID)
	assert.Contains(t, quality.failMsg, "connection reset")
}

func TestQualityService_WriteFailureMarksRunFailed(t *testing.T) {
	src := &mockQualitySource{rowCounts: map[string]int64{"public.users": 10}}
	quality := &mockQualityRepo{writeErr: errors.New("disk full")}
	svc := NewQualityService(qualitySnapshotRepo(), quality, zap.NewNop())

	_, err := svc.ExtractMetrics(context.Background(), "sync-1", src, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), quality.failedID)
	assert.Contains(t, quality.failMsg, "disk full")
}

// ============================================================================
// QualityScore
// ============================================================================

func TestQualityScore_EmptyInventory(t *testing.T) {
	assert.Equal(t, 100.0, QualityScore(0, 0, 0))
}

func TestQualityScore_Perfect(t *testing.T) {
	assert.Equal(t, 100.0, QualityScore(50, 0, 0))
}

func TestQualityScore_FullSaturation(t *testing.T) {
	// Every column both high-null and low-distinct: 100 - 30 - 20.
	assert.Equal(t, 50.0, QualityScore(10, 10, 10))
}

func TestQualityScore_Rounding(t *testing.T) {
	// 100 - 30*(1/3) = 90, 100 - 30*(2/3) = 80; odd splits round to one decimal.
	assert.InDelta(t, 95.7, QualityScore(7, 1, 0), 0.001)
}

func TestQualityScore_WeightedPenalties(t *testing.T) {
	// 100 - 30*(40/100) - 20*(5/100) = 87.0
	assert.Equal(t, 87.0, QualityScore(100, 40, 5))
}

func TestQualityScore_NeverNegative(t *testing.T) {
	score := QualityScore(1, 1, 1)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Equal(t, 50.0, score)
}
