package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const querySavedSchema = `
CREATE TABLE IF NOT EXISTS saved_queries (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    question   TEXT NOT NULL,
    sql        TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    tag        TEXT,
    notes      TEXT
)`

const querySavedInsert = `
INSERT INTO saved_queries (name, question, sql, tag, notes)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
RETURNING id`

const querySavedSelect = `
SELECT id, name, question, sql, created_at, COALESCE(tag, ''), COALESCE(notes, '')
FROM saved_queries`

// SavedQueryStore is the Postgres-backed saved query store, for deployments
// where several asksql instances share one catalogue.
type SavedQueryStore struct {
	pool *pgxpool.Pool
}

func NewSavedQueryStore(pool *pgxpool.Pool) *SavedQueryStore {
	return &SavedQueryStore{pool: pool}
}

func (s *SavedQueryStore) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, querySavedSchema); err != nil {
		return fmt.Errorf("initializing saved queries: %w", err)
	}
	return nil
}

func (s *SavedQueryStore) Save(ctx context.Context, q domain.SavedQuery) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, querySavedInsert, q.Name, q.Question, q.SQL, q.Tag, q.Notes).Scan(&id); err != nil {
		return 0, fmt.Errorf("saving query: %w", err)
	}
	return id, nil
}

func (s *SavedQueryStore) List(ctx context.Context, search string) ([]domain.SavedQuery, error) {
	query := querySavedSelect
	var args []any
	if search != "" {
		query += ` WHERE name ILIKE $1 OR question ILIKE $1 OR tag ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing saved queries: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanSavedQuery)
	if err != nil {
		return nil, fmt.Errorf("listing saved queries: %w", err)
	}
	if out == nil {
		out = []domain.SavedQuery{}
	}
	return out, nil
}

func (s *SavedQueryStore) Get(ctx context.Context, id int64) (*domain.SavedQuery, error) {
	rows, err := s.pool.Query(ctx, querySavedSelect+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("loading saved query %d: %w", id, err)
	}
	q, err := pgx.CollectOneRow(rows, scanSavedQuery)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("saved query %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("loading saved query %d: %w", id, err)
	}
	return &q, nil
}

func (s *SavedQueryStore) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_queries WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting saved query %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *SavedQueryStore) Close() error {
	s.pool.Close()
	return nil
}

func scanSavedQuery(row pgx.CollectableRow) (domain.SavedQuery, error) {
	var q domain.SavedQuery
	err := row.Scan(&q.ID, &q.Name, &q.Question, &q.SQL, &q.CreatedAt, &q.Tag, &q.Notes)
	return q, err
}
