package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchFKNamingPattern(t *testing.T) {
	t.Parallel()
	tables := []string{"books", "Authors", "categories", "status", "boxes"}

	matches := map[string]struct{ table, confidence string }{
		"book_id":   {"books", "high"},
		"author_id": {"Authors", "high"},
		"AUTHOR_ID": {"Authors", "high"},
		"status_id": {"status", "high"},
		"box_id":    {"boxes", "medium"},
	}
	for col, want := range matches {
		c, ok := MatchFKNamingPattern(col, tables)
		require.True(t, ok, col)
		assert.Equal(t, FKCandidate{
			ColumnName:      col,
			ReferencedTable: want.table,
			ReferencedPK:    "id",
			Confidence:      want.confidence,
			Reason:          c.Reason,
		}, c)
		assert.Contains(t, c.Reason, want.table)
	}

	for _, col := range []string{"title", "order_id", "_id", "paid"} {
		_, ok := MatchFKNamingPattern(col, tables)
		assert.False(t, ok, col)
	}
}

func TestInferForeignKeys_SkipsSelfReference(t *testing.T) {
	t.Parallel()

	got := InferForeignKeys("books",
		[]string{"id", "title", "author_id", "book_id", "category_id"},
		[]string{"books", "authors", "categories"},
	)

	require.Len(t, got, 1)
	assert.Equal(t, "author_id", got[0].ColumnName)
	assert.Equal(t, "authors", got[0].ReferencedTable)
}
