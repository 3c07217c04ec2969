package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var seedStatements = []string{
	`CREATE TABLE books (id INTEGER, title VARCHAR, price DECIMAL(10, 2), author_id INTEGER)`,
	`CREATE TABLE authors (id INTEGER, name VARCHAR)`,
	`INSERT INTO authors VALUES (1, 'Tipping Velvet Author'), (2, 'Soumission Author')`,
	`INSERT INTO books VALUES
		(1, 'A Light in the Attic', 51.77, 1),
		(2, 'Tipping the Velvet', 53.74, 1),
		(3, 'Soumission', 50.10, 2),
		(4, 'Sharp Objects', 47.82, NULL)`,
}

// seededPath writes a small books database to a temp file and closes it, so
// callers can reopen the file read-only.
func seededPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.duckdb")

	db, err := Open(context.Background(), path, false)
	require.NoError(t, err)
	for _, stmt := range seedStatements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	return path
}
