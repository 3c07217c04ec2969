package domain

import "errors"

// ErrQueryFailed wraps errors reported by the query engine for gated SQL.
var ErrQueryFailed = errors.New("query failed")

// ResultSet is a tabular query result with columns in select order.
type ResultSet struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Records returns the rows as column-name keyed maps, for JSON consumers that
// prefer objects over positional arrays.
func (r *ResultSet) Records() []map[string]any {
	if r == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}
