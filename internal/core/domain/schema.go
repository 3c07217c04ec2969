package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoTables = errors.New("no tables found in the DuckDB database")

// TableSchema is the slice of table metadata the SQL generator is shown.
type TableSchema struct {
	Name        string
	Description string
	Columns     []ColumnSchema
}

type ColumnSchema struct {
	Name string
	Type string
}

// BuildSchemaContext renders tables as the compact text block handed to the
// model:
//
//	Tables:
//	- books: title VARCHAR, price DECIMAL(10,2)
func BuildSchemaContext(tables []TableSchema) (string, error) {
	if len(tables) == 0 {
		return "", ErrNoTables
	}

	var b strings.Builder
	b.WriteString("Tables:")
	for _, t := range tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, c.Name+" "+c.Type)
		}
		fmt.Fprintf(&b, "\n- %s: %s", t.Name, strings.Join(cols, ", "))
		if t.Description != "" {
			b.WriteString(" -- " + t.Description)
		}
	}
	return b.String(), nil
}
