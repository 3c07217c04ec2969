package port

import (
	"context"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

// PageFetcher returns the HTML of a catalogue page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BookParser extracts books from catalogue HTML.
type BookParser interface {
	Parse(html string) ([]domain.Book, error)
}

// BookWriter replaces the contents of the books table.
type BookWriter interface {
	WriteBooks(ctx context.Context, books []domain.Book) (int, error)
}
