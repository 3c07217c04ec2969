package service

import (
	"context"
	"errors"
	"testing"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	html    string
	err     error
	lastURL string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.lastURL = url
	return f.html, f.err
}

type stubParser struct {
	books []domain.Book
	err   error
}

func (p stubParser) Parse(string) ([]domain.Book, error) { return p.books, p.err }

type stubWriter struct {
	written []domain.Book
}

func (w *stubWriter) WriteBooks(_ context.Context, books []domain.Book) (int, error) {
	w.written = books
	return len(books), nil
}

func TestScrapeService_Build(t *testing.T) {
	fetch := &stubFetcher{html: "<html/>"}
	books := []domain.Book{{Title: "A", Price: 1}, {Title: "B", Price: 2}}
	w := &stubWriter{}
	svc := NewScrapeService(fetch, stubParser{books: books}, w, "https://books.toscrape.com/", testLogger())

	n, err := svc.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "https://books.toscrape.com/", fetch.lastURL)
	assert.Equal(t, books, w.written)
}

func TestScrapeService_Errors(t *testing.T) {
	w := &stubWriter{}

	_, err := NewScrapeService(&stubFetcher{err: errors.New("timeout")}, stubParser{}, w, "u", testLogger()).Build(context.Background())
	assert.ErrorContains(t, err, "fetch: timeout")

	_, err = NewScrapeService(&stubFetcher{}, stubParser{err: domain.ErrNoBooks}, w, "u", testLogger()).Build(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoBooks)
	assert.Nil(t, w.written)
}
