package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/asksql/internal/core/port"
)

// ScrapeService rebuilds the books table from a catalogue page.
type ScrapeService struct {
	fetcher port.PageFetcher
	parser  port.BookParser
	writer  port.BookWriter
	url     string
	logger  *slog.Logger
}

func NewScrapeService(fetcher port.PageFetcher, parser port.BookParser, writer port.BookWriter, url string, logger *slog.Logger) *ScrapeService {
	return &ScrapeService{fetcher: fetcher, parser: parser, writer: writer, url: url, logger: logger}
}

// Build fetches, parses and writes books, returning how many were stored.
func (s *ScrapeService) Build(ctx context.Context) (int, error) {
	html, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	books, err := s.parser.Parse(html)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	n, err := s.writer.WriteBooks(ctx, books)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	s.logger.InfoContext(ctx, "books table rebuilt", slog.String("url", s.url), slog.Int("books", n))
	return n, nil
}
