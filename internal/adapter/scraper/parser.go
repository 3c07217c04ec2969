package scraper

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/guillermoBallester/asksql/internal/core/domain"
)

// priceReplacer strips the pound sign, including its mis-decoded UTF-8 form.
var priceReplacer = strings.NewReplacer("Â£", "", "£", "")

// BookParser extracts books from books.toscrape.com catalogue markup.
type BookParser struct {
	logger *slog.Logger
}

func NewBookParser(logger *slog.Logger) *BookParser {
	return &BookParser{logger: logger}
}

// Parse returns every product with both a title and a parseable price, or
// domain.ErrNoBooks when there are none.
func (p *BookParser) Parse(html string) ([]domain.Book, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var books []domain.Book
	doc.Find("article.product_pod").Each(func(_ int, pod *goquery.Selection) {
		title, ok := pod.Find("h3 a").First().Attr("title")
		title = strings.TrimSpace(title)
		if !ok || title == "" {
			return
		}

		priceTag := pod.Find("div.product_price p.price_color").First()
		if priceTag.Length() == 0 {
			return
		}
		priceText := strings.TrimSpace(priceReplacer.Replace(priceTag.Text()))
		price, err := strconv.ParseFloat(priceText, 64)
		if err != nil {
			p.logger.Warn("unable to parse price", slog.String("price", priceText), slog.String("title", title))
			return
		}

		books = append(books, domain.Book{Title: title, Price: price})
	})
	if len(books) == 0 {
		return nil, domain.ErrNoBooks
	}
	return books, nil
}
