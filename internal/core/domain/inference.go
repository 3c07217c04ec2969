package domain

import (
	"fmt"
	"strings"
)

// FKCandidate is a possible foreign key relationship inferred from column
// naming. DuckDB files built by scrapers rarely declare constraints, so this is
// often the only relationship information available.
type FKCandidate struct {
	ColumnName      string // e.g. "author_id"
	ReferencedTable string // e.g. "authors"
	ReferencedPK    string // assumed "id"
	Confidence      string // "high" or "medium"
	Reason          string
}

// MatchFKNamingPattern checks whether columnName follows the *_id convention
// and names one of tables (plural or singular form). Matching ignores case;
// the returned table keeps the spelling from tables.
func MatchFKNamingPattern(columnName string, tables []string) (FKCandidate, bool) {
	lower := strings.ToLower(columnName)
	if !strings.HasSuffix(lower, "_id") {
		return FKCandidate{}, false
	}
	prefix := strings.TrimSuffix(lower, "_id")
	if prefix == "" {
		return FKCandidate{}, false
	}

	byLower := make(map[string]string, len(tables))
	for _, t := range tables {
		byLower[strings.ToLower(t)] = t
	}

	for _, candidate := range []string{prefix + "s", prefix, prefix + "es"} {
		table, ok := byLower[candidate]
		if !ok {
			continue
		}
		confidence := "high"
		if candidate == prefix+"es" {
			confidence = "medium"
		}
		return FKCandidate{
			ColumnName:      columnName,
			ReferencedTable: table,
			ReferencedPK:    "id",
			Confidence:      confidence,
			Reason:          fmt.Sprintf("column %q matches naming pattern for table %q", columnName, table),
		}, true
	}
	return FKCandidate{}, false
}

// InferForeignKeys runs MatchFKNamingPattern over every column of a table,
// skipping self references.
func InferForeignKeys(table string, columns []string, tables []string) []FKCandidate {
	var out []FKCandidate
	for _, col := range columns {
		c, ok := MatchFKNamingPattern(col, tables)
		if !ok || strings.EqualFold(c.ReferencedTable, table) {
			continue
		}
		out = append(out, c)
	}
	return out
}
