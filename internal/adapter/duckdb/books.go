package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

const createBooksTable = `CREATE TABLE IF NOT EXISTS books (
    title VARCHAR,
    price DECIMAL(10, 2)
)`

// BookWriter replaces the books table on a read-write handle.
type BookWriter struct {
	db *sql.DB
}

func NewBookWriter(db *sql.DB) *BookWriter {
	return &BookWriter{db: db}
}

// WriteBooks creates the table if needed, deletes existing rows and inserts
// books in one transaction.
func (w *BookWriter) WriteBooks(ctx context.Context, books []domain.Book) (int, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createBooksTable); err != nil {
		return 0, fmt.Errorf("creating books table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM books"); err != nil {
		return 0, fmt.Errorf("clearing books table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO books (title, price) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, b := range books {
		if _, err := stmt.ExecContext(ctx, b.Title, b.Price); err != nil {
			return 0, fmt.Errorf("inserting %q: %w", b.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return len(books), nil
}
