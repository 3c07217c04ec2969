package port

import (
	"context"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

// ColumnStats holds profiling data for a single column.
type ColumnStats struct {
	Name          string                  `json:"name"`
	DataType      string                  `json:"data_type"`
	NullFraction  float64                 `json:"null_fraction"`
	Cardinality   domain.CardinalityClass `json:"cardinality"`
	DistinctCount int64                   `json:"distinct_count"`
	MinValue      string                  `json:"min_value,omitempty"`
	MaxValue      string                  `json:"max_value,omitempty"`
}

// InferredFK represents a foreign key relationship inferred from naming patterns.
type InferredFK struct {
	ColumnName       string `json:"column_name"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
	Confidence       string `json:"confidence"`
	Reason           string `json:"reason"`
}

// TableProfile holds deep analysis data for a single table.
type TableProfile struct {
	Name        string           `json:"name"`
	RowCount    int64            `json:"row_count"`
	Columns     []ColumnStats    `json:"columns"`
	SampleRows  []map[string]any `json:"sample_rows,omitempty"`
	InferredFKs []InferredFK     `json:"inferred_fks,omitempty"`
}

type SchemaProfiler interface {
	ProfileTable(ctx context.Context, tableName string) (*TableProfile, error)
}
