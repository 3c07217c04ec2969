package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

const sampleRowLimit = 5

// Profiler builds table profiles from COUNT(*), SUMMARIZE and a row sample.
type Profiler struct {
	db       *sql.DB
	explorer *Explorer
	logger   *slog.Logger
}

func NewProfiler(db *sql.DB, logger *slog.Logger) *Profiler {
	return &Profiler{db: db, explorer: NewExplorer(db), logger: logger}
}

func (p *Profiler) ProfileTable(ctx context.Context, tableName string) (*port.TableProfile, error) {
	name, err := p.explorer.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}
	profile := &port.TableProfile{Name: name}

	// 1. Row count.
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&profile.RowCount); err != nil {
		return nil, fmt.Errorf("counting rows of %s: %w", name, err)
	}

	// 2. Column statistics.
	profile.Columns, err = p.summarize(ctx, name, profile.RowCount)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", name, err)
	}

	// 3. Sample rows. Non-fatal.
	sample, err := p.sample(ctx, name)
	if err != nil {
		p.logger.WarnContext(ctx, "sampling table failed", slog.String("table", name), slog.String("error", err.Error()))
	} else {
		profile.SampleRows = sample
	}

	// 4. Implicit FK candidates from *_id columns.
	tables, err := p.explorer.tableNames(ctx)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(profile.Columns))
	for _, c := range profile.Columns {
		cols = append(cols, c.Name)
	}
	for _, c := range domain.InferForeignKeys(name, cols, tables) {
		profile.InferredFKs = append(profile.InferredFKs, port.InferredFK{
			ColumnName:       c.ColumnName,
			ReferencedTable:  c.ReferencedTable,
			ReferencedColumn: c.ReferencedPK,
			Confidence:       c.Confidence,
			Reason:           c.Reason,
		})
	}

	return profile, nil
}

func (p *Profiler) summarize(ctx context.Context, name string, rowCount int64) ([]port.ColumnStats, error) {
	rows, err := p.db.QueryContext(ctx, "SUMMARIZE "+quoteIdent(name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	res, err := scanResult(rows, 0)
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(res.Columns))
	for i, c := range res.Columns {
		idx[c] = i
	}
	get := func(row []any, col string) any {
		if i, ok := idx[col]; ok && i < len(row) {
			return row[i]
		}
		return nil
	}

	stats := make([]port.ColumnStats, 0, len(res.Rows))
	for _, row := range res.Rows {
		approx := toInt64(get(row, "approx_unique"))
		if approx > rowCount {
			approx = rowCount
		}
		stats = append(stats, port.ColumnStats{
			Name:          toString(get(row, "column_name")),
			DataType:      toString(get(row, "column_type")),
			MinValue:      toString(get(row, "min")),
			MaxValue:      toString(get(row, "max")),
			DistinctCount: approx,
			Cardinality:   domain.ClassifyApproxUnique(approx, rowCount),
			NullFraction:  toFloat64(get(row, "null_percentage")) / 100,
		})
	}
	return stats, nil
}

func (p *Profiler) sample(ctx context.Context, name string) ([]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(name), sampleRowLimit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	res, err := scanResult(rows, sampleRowLimit)
	if err != nil {
		return nil, err
	}
	return res.Records(), nil
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	}
	return 0
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}
