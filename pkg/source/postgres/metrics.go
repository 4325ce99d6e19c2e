package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/models"
)

// RowCount returns the table's row count, preferring the planner's reltuples
// estimate and falling back to COUNT(*) when the table has never been
// analyzed.
func (s *Source) RowCount(ctx context.Context, schemaName, tableName string) (int64, error) {
	estimateQuery := `
		SELECT c.reltuples::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`

	var estimate int64
	err := s.pool.QueryRow(ctx, estimateQuery, schemaName, tableName).Scan(&estimate)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate row count of %s.%s: %w", schemaName, tableName, err)
	}
	if estimate > 0 {
		return estimate, nil
	}

	ident := pgx.Identifier{schemaName, tableName}.Sanitize()
	var count int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ident)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s.%s: %w", schemaName, tableName, err)
	}
	return count, nil
}

// ColumnMetrics samples one column and computes null, distinct, and top-value
// statistics. The sample is capped at the configured limit so wide tables
// stay cheap to profile.
func (s *Source) ColumnMetrics(ctx context.Context, schemaName, tableName, columnName string) (*models.ColumnQualityMetrics, error) {
	tableIdent := pgx.Identifier{schemaName, tableName}.Sanitize()
	colIdent := pgx.Identifier{columnName}.Sanitize()

	statsQuery := fmt.Sprintf(`
		SELECT COUNT(*), COUNT(%s), COUNT(DISTINCT %s)
		FROM (SELECT %s FROM %s LIMIT %d) sample`,
		colIdent, colIdent, colIdent, tableIdent, s.sampleLimit)

	metrics := &models.ColumnQualityMetrics{ColumnName: columnName}
	err := s.pool.QueryRow(ctx, statsQuery).Scan(
		&metrics.TotalCount, &metrics.NonNullCount, &metrics.DistinctCount)
	if err != nil {
		return nil, fmt.Errorf("failed to profile %s.%s.%s: %w", schemaName, tableName, columnName, err)
	}

	metrics.NullCount = metrics.TotalCount - metrics.NonNullCount
	if metrics.TotalCount > 0 {
		metrics.NullPercentage = round2(float64(metrics.NullCount) / float64(metrics.TotalCount) * 100)
		metrics.DistinctPercentage = round2(float64(metrics.DistinctCount) / float64(metrics.TotalCount) * 100)
	}

	if s.topK > 0 && metrics.NonNullCount > 0 {
		topValues, err := s.topValues(ctx, tableIdent, colIdent)
		if err != nil {
			s.logger.Warn("Failed to collect top values",
				zap.String("table", schemaName+"."+tableName),
				zap.String("column", columnName),
				zap.Error(err))
		} else {
			metrics.TopValues = topValues
		}
	}

	return metrics, nil
}

func (s *Source) topValues(ctx context.Context, tableIdent, colIdent string) ([]models.TopValue, error) {
	query := fmt.Sprintf(`
		SELECT %s::text, COUNT(*)
		FROM (SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d) sample
		GROUP BY %s
		ORDER BY COUNT(*) DESC, %s::text
		LIMIT %d`,
		colIdent, colIdent, tableIdent, colIdent, s.sampleLimit, colIdent, colIdent, s.topK)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]models.TopValue, 0, s.topK)
	for rows.Next() {
		var (
			value string
			tv    models.TopValue
		)
		if err := rows.Scan(&value, &tv.Frequency); err != nil {
			return nil, err
		}
		tv.Value = value
		values = append(values, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
