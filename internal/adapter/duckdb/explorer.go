package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

// Explorer reads table metadata with SHOW TABLES and PRAGMA table_info.
type Explorer struct {
	db *sql.DB
}

func NewExplorer(db *sql.DB) *Explorer {
	return &Explorer{db: db}
}

func (e *Explorer) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	names, err := e.tableNames(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]port.TableInfo, 0, len(names))
	for _, n := range names {
		tables = append(tables, port.TableInfo{Name: n})
	}
	return tables, nil
}

func (e *Explorer) DescribeTable(ctx context.Context, tableName string) (*port.TableDetail, error) {
	name, err := e.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, "PRAGMA table_info("+quoteLiteral(name)+")")
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	detail := &port.TableDetail{Name: name}
	for rows.Next() {
		var (
			cid     int64
			col     port.ColumnInfo
			notNull bool
			dflt    sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &col.DataType, &notNull, &dflt, &col.IsPrimaryKey); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", name, err)
		}
		col.IsNullable = !notNull
		col.DefaultValue = dflt.String
		detail.Columns = append(detail.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns of %s: %w", name, err)
	}
	return detail, nil
}

func (e *Explorer) tableNames(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}
	return names, nil
}

// resolve maps a user-supplied name onto the catalog spelling. DuckDB
// identifiers are case-insensitive.
func (e *Explorer) resolve(ctx context.Context, tableName string) (string, error) {
	names, err := e.tableNames(ctx)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.EqualFold(n, tableName) {
			return n, nil
		}
	}
	return "", fmt.Errorf("table %q: %w", tableName, domain.ErrNotFound)
}
