package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ErrDatabaseNotFound is returned when a read-only open targets a missing file.
var ErrDatabaseNotFound = errors.New("duckdb file not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Open connects to the DuckDB file at path. Read-only handles refuse to create
// the file and set access_mode=READ_ONLY, so DuckDB itself rejects writes.
// Read-write handles create the parent directory as needed.
//
// DuckDB refuses to open one file twice in a process with different access
// modes; close a read-write handle before opening the same file read-only.
func Open(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	dsn, err := buildDSN(path, readOnly)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb %q: %w", path, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to duckdb %q: %w", path, err)
	}
	return db, nil
}

func buildDSN(path string, readOnly bool) (string, error) {
	if path == MemoryPath || path == "" {
		return "", nil
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking duckdb file: %w", err)
		}
		if readOnly {
			return "", fmt.Errorf("%w at %q", ErrDatabaseNotFound, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("creating duckdb directory: %w", err)
		}
	}

	if readOnly {
		return path + "?access_mode=READ_ONLY", nil
	}
	return path, nil
}

// quoteIdent double-quotes a table or column name for interpolation.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral single-quotes a string for interpolation where DuckDB does not
// accept bind parameters, such as PRAGMA arguments.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
