package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/models"
	"github.com/meridian-data/catalogd/pkg/repositories"
	"github.com/meridian-data/catalogd/pkg/source"
)

// Quality flag thresholds. A column is high-null when more than half its
// sampled values are null, and low-distinct when fewer than a tenth of the
// values are distinct on a table large enough for that to mean anything.
const (
	highNullThresholdPct    = 50.0
	lowDistinctThresholdPct = 10.0
	lowDistinctMinRows      = 100
)

// QualitySummary is the caller-facing result of a quality extraction run.
type QualitySummary struct {
	RunID              int64
	SyncID             string
	TotalTables        int
	TotalColumns       int
	HighNullColumns    int
	LowDistinctColumns int
	Score              float64
	Tables             []*models.TableQualityMetrics
}

// QualityService profiles the tables of a sync run's snapshot against the
// live source database and persists the resulting metrics.
type QualityService interface {
	ExtractMetrics(ctx context.Context, syncID string, src source.QualitySource, targetSchemas []string) (*QualitySummary, error)
}

type qualityService struct {
	snapshots repositories.SnapshotRepository
	quality   repositories.QualityRepository
	logger    *zap.Logger
}

// NewQualityService creates a new QualityService.
func NewQualityService(snapshots repositories.SnapshotRepository, quality repositories.QualityRepository, logger *zap.Logger) QualityService {
	return &qualityService{snapshots: snapshots, quality: quality, logger: logger}
}

var _ QualityService = (*qualityService)(nil)

func (s *qualityService) ExtractMetrics(ctx context.Context, syncID string, src source.QualitySource, targetSchemas []string) (*QualitySummary, error) {
	run := &models.QualityRun{SyncID: syncID, TargetSchemas: targetSchemas}
	if err := s.quality.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	started := time.Now()
	summary, err := s.profile(ctx, syncID, src, targetSchemas)
	if err != nil {
		if markErr := s.quality.MarkFailed(ctx, run.RunID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark quality run failed",
				zap.Int64("run_id", run.RunID), zap.Error(markErr))
		}
		return nil, fmt.Errorf("quality extraction failed: %w", err)
	}

	duration := time.Since(started).Seconds()
	if err := s.quality.WriteMetrics(ctx, run.RunID, summary.Tables, duration); err != nil {
		if markErr := s.quality.MarkFailed(ctx, run.RunID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark quality run failed",
				zap.Int64("run_id", run.RunID), zap.Error(markErr))
		}
		return nil, err
	}

	summary.RunID = run.RunID
	summary.SyncID = syncID

	s.logger.Info("Quality extraction completed",
		zap.Int64("run_id", run.RunID),
		zap.Int("tables", summary.TotalTables),
		zap.Int("columns", summary.TotalColumns),
		zap.Float64("score", summary.Score))

	return summary, nil
}

func (s *qualityService) profile(ctx context.Context, syncID string, src source.QualitySource, targetSchemas []string) (*QualitySummary, error) {
	tables, err := s.snapshots.LoadEntities(ctx, syncID, models.KindTable)
	if err != nil {
		return nil, err
	}
	columns, err := s.snapshots.LoadEntities(ctx, syncID, models.KindColumn)
	if err != nil {
		return nil, err
	}

	include := map[string]bool{}
	for _, schema := range targetSchemas {
		include[schema] = true
	}

	columnsByTable := make(map[models.EntityKey][]string)
	for _, col := range columns {
		tableKey := models.EntityKey{SchemaName: col.Key.SchemaName, Name: col.Key.TableName}
		columnsByTable[tableKey] = append(columnsByTable[tableKey], col.Key.Name)
	}

	summary := &QualitySummary{}
	for _, table := range tables {
		schemaName := table.Key.SchemaName
		tableName := table.Key.Name
		if len(include) > 0 && !include[schemaName] {
			continue
		}

		rowCount, err := src.RowCount(ctx, schemaName, tableName)
		if err != nil {
			return nil, err
		}

		tableMetrics := &models.TableQualityMetrics{
			SchemaName: schemaName,
			TableName:  tableName,
			RowCount:   rowCount,
		}

		for _, columnName := range columnsByTable[models.EntityKey{SchemaName: schemaName, Name: tableName}] {
			colMetrics, err := src.ColumnMetrics(ctx, schemaName, tableName, columnName)
			if err != nil {
				return nil, err
			}
			tableMetrics.ColumnMetrics = append(tableMetrics.ColumnMetrics, *colMetrics)

			summary.TotalColumns++
			if colMetrics.NullPercentage > highNullThresholdPct {
				summary.HighNullColumns++
			}
			if colMetrics.DistinctPercentage < lowDistinctThresholdPct && colMetrics.TotalCount > lowDistinctMinRows {
				summary.LowDistinctColumns++
			}
		}

		summary.Tables = append(summary.Tables, tableMetrics)
		summary.TotalTables++
	}

	summary.Score = QualityScore(summary.TotalColumns, summary.HighNullColumns, summary.LowDistinctColumns)
	return summary, nil
}

// QualityScore aggregates column-level flags into a 0-100 score. High-null
// columns weigh 30 points at full saturation, low-distinct columns 20. An
// empty inventory scores a perfect 100. Rounded to one decimal.
func QualityScore(totalColumns, highNullColumns, lowDistinctColumns int) float64 {
	if totalColumns == 0 {
		return 100.0
	}

	score := 100.0 -
		30.0*float64(highNullColumns)/float64(totalColumns) -
		20.0*float64(lowDistinctColumns)/float64(totalColumns)

	score = math.Round(score*10) / 10
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
