package domain

import "errors"

var ErrNoBooks = errors.New("no books parsed from page")

// Book is one scraped catalogue entry.
type Book struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}
