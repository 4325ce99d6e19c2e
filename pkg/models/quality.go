package models

import "time"

// QualityRun is one quality extraction invocation over a sync run's tables.
type QualityRun struct {
	RunID           int64
	SyncID          string
	TargetSchemas   []string
	TotalTables     int
	TotalColumns    int
	Status          RunStatus
	ErrorMessage    *string
	DurationSeconds *float64
	CreatedAt       time.Time
}

// TopValue is one frequent value of a column with its occurrence count.
type TopValue struct {
	Value     any   `json:"value"`
	Frequency int64 `json:"frequency"`
}

// ColumnQualityMetrics holds per-column data-quality statistics computed
// fresh on each quality extraction. Percentages are rounded to two decimals.
type ColumnQualityMetrics struct {
	ColumnName         string     `json:"column_name"`
	TotalCount         int64      `json:"total_count"`
	NonNullCount       int64      `json:"non_null_count"`
	NullCount          int64      `json:"null_count"`
	NullPercentage     float64    `json:"null_percentage"`
	DistinctCount      int64      `json:"distinct_count"`
	DistinctPercentage float64    `json:"distinct_percentage"`
	TopValues          []TopValue `json:"top_values,omitempty"`
}

// TableQualityMetrics holds row count and column metrics for one table.
type TableQualityMetrics struct {
	SchemaName    string                 `json:"schema_name"`
	TableName     string                 `json:"table_name"`
	RowCount      int64                  `json:"row_count"`
	ColumnMetrics []ColumnQualityMetrics `json:"column_metrics,omitempty"`
}
