package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

// Executor runs gated SQL against a read-only DuckDB handle.
type Executor struct {
	db           *sql.DB
	maxRows      int
	queryTimeout time.Duration
}

func NewExecutor(db *sql.DB, maxRows int, queryTimeout time.Duration) *Executor {
	return &Executor{
		db:           db,
		maxRows:      maxRows,
		queryTimeout: queryTimeout,
	}
}

// Execute forwards sql unchanged. Rows past maxRows are dropped and reported
// through ResultSet.Truncated rather than by rewriting the query, since the
// text must reach the engine exactly as it passed the gate.
func (e *Executor) Execute(ctx context.Context, sql string) (*domain.ResultSet, error) {
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	rows, err := e.db.QueryContext(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	res, err := scanResult(rows, e.maxRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueryFailed, err)
	}
	return res, nil
}
