package duckdb

import (
	"database/sql"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/guillermoBallester/asksql/internal/core/domain"
)

// scanResult reads rows into a ResultSet. A positive maxRows caps the number
// of rows kept; one extra row is probed to decide Truncated.
func scanResult(rows *sql.Rows, maxRows int) (*domain.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	res := &domain.ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return res, nil
}

// normalizeValue converts driver types that render poorly in JSON and tables.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case duckdb.Decimal:
		return x.Float64()
	case *duckdb.Decimal:
		if x == nil {
			return nil
		}
		return x.Float64()
	default:
		return v
	}
}
