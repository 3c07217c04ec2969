package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

var savedQueriesSchema = []string{
	`CREATE SEQUENCE IF NOT EXISTS saved_queries_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS saved_queries (
    id BIGINT PRIMARY KEY DEFAULT nextval('saved_queries_id_seq'),
    name VARCHAR NOT NULL,
    question VARCHAR NOT NULL,
    sql VARCHAR NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    tag VARCHAR,
    notes VARCHAR
)`,
}

const savedQueryColumns = `id, name, question, sql, created_at, tag, notes`

// SavedQueryStore keeps saved queries in their own DuckDB file, separate from
// the read-only analytical database.
type SavedQueryStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSavedQueryStore(db *sql.DB) *SavedQueryStore {
	return &SavedQueryStore{db: db, now: time.Now}
}

func (s *SavedQueryStore) Init(ctx context.Context) error {
	for _, stmt := range savedQueriesSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initializing saved queries: %w", err)
		}
	}
	return nil
}

func (s *SavedQueryStore) Save(ctx context.Context, q domain.SavedQuery) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO saved_queries (name, question, sql, created_at, tag, notes)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		q.Name, q.Question, q.SQL, s.now().UTC(), nullable(q.Tag), nullable(q.Notes),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving query: %w", err)
	}
	return id, nil
}

// List returns saved queries newest first. A non-empty search keeps rows whose
// name, question or tag contains it, ignoring case.
func (s *SavedQueryStore) List(ctx context.Context, search string) ([]domain.SavedQuery, error) {
	query := `SELECT ` + savedQueryColumns + ` FROM saved_queries`
	var args []any
	if search != "" {
		like := "%" + search + "%"
		query += ` WHERE name ILIKE ? OR question ILIKE ? OR tag ILIKE ?`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing saved queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.SavedQuery{}
	for rows.Next() {
		q, err := scanSavedQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating saved queries: %w", err)
	}
	return out, nil
}

func (s *SavedQueryStore) Get(ctx context.Context, id int64) (*domain.SavedQuery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+savedQueryColumns+` FROM saved_queries WHERE id = ?`, id)
	q, err := scanSavedQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("saved query %d: %w", id, domain.ErrNotFound)
	}
	return q, err
}

func (s *SavedQueryStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting saved query %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting saved query %d: %w", id, err)
	}
	return n > 0, nil
}

func (s *SavedQueryStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSavedQuery(r scanner) (*domain.SavedQuery, error) {
	var (
		q         domain.SavedQuery
		tag, note sql.NullString
	)
	if err := r.Scan(&q.ID, &q.Name, &q.Question, &q.SQL, &q.CreatedAt, &tag, &note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning saved query: %w", err)
	}
	q.Tag = tag.String
	q.Notes = note.String
	return &q, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
