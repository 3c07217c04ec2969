package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidSavedQuery = errors.New("invalid saved query")

// MaxSavedQueryNameLen bounds names derived from the question text.
const MaxSavedQueryNameLen = 80

// SavedQuery is a question and its generated SQL kept for re-running.
type SavedQuery struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	CreatedAt time.Time `json:"created_at"`
	Tag       string    `json:"tag,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Normalize trims every field and falls back to the question for a missing
// name. It returns ErrInvalidSavedQuery when question or SQL is blank.
func (q *SavedQuery) Normalize() error {
	q.Name = strings.TrimSpace(q.Name)
	q.Question = strings.TrimSpace(q.Question)
	q.SQL = strings.TrimSpace(q.SQL)
	q.Tag = strings.TrimSpace(q.Tag)
	q.Notes = strings.TrimSpace(q.Notes)

	if q.Question == "" {
		return errors.Join(ErrInvalidSavedQuery, errors.New("question is required"))
	}
	if q.SQL == "" {
		return errors.Join(ErrInvalidSavedQuery, errors.New("sql is required"))
	}
	if q.Name == "" {
		q.Name = truncateRunes(q.Question, MaxSavedQueryNameLen)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
