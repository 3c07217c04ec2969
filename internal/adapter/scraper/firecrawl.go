package scraper

import (
	"context"
	"errors"
	"fmt"

	firecrawl "github.com/mendableai/firecrawl-go"
)

var ErrNoHTML = errors.New("scrape completed but no HTML was returned")

// FirecrawlFetcher renders pages through the Firecrawl scrape API, which
// handles JavaScript and bot protection the direct fetcher cannot.
type FirecrawlFetcher struct {
	app *firecrawl.FirecrawlApp
}

// NewFirecrawlFetcher builds a client for the Firecrawl API. An empty apiURL
// selects the hosted service.
func NewFirecrawlFetcher(apiKey, apiURL string) (*FirecrawlFetcher, error) {
	app, err := firecrawl.NewFirecrawlApp(apiKey, apiURL)
	if err != nil {
		return nil, fmt.Errorf("firecrawl client: %w", err)
	}
	return &FirecrawlFetcher{app: app}, nil
}

type scrapeOutcome struct {
	doc *firecrawl.FirecrawlDocument
	err error
}

// Fetch returns the rendered HTML of url. The SDK call takes no context, so a
// cancelled ctx returns early and the request finishes in the background.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	done := make(chan scrapeOutcome, 1)
	go func() {
		doc, err := f.app.ScrapeURL(url, &firecrawl.ScrapeParams{Formats: []string{"html"}})
		done <- scrapeOutcome{doc: doc, err: err}
	}()

	var out scrapeOutcome
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case out = <-done:
	}
	if out.err != nil {
		return "", fmt.Errorf("firecrawl scrape %s: %w", url, out.err)
	}
	if out.doc == nil {
		return "", ErrNoHTML
	}

	html := out.doc.HTML
	if html == "" {
		html = out.doc.RawHTML
	}
	if html == "" {
		return "", ErrNoHTML
	}
	return html, nil
}
