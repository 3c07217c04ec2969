package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/guillermoBallester/asksql/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *domain.ResultSet {
	return &domain.ResultSet{
		Columns:   []string{"title", "price"},
		Rows:      [][]any{{"A Light in the Attic", 51.77}, {"Tipping the Velvet", nil}},
		Truncated: true,
	}
}

func TestRenderer_ResultTable(t *testing.T) {
	var buf bytes.Buffer
	r := renderer{w: &buf, format: outputTable}

	require.NoError(t, r.result(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "title")
	assert.Contains(t, out, "A Light in the Attic")
	assert.Contains(t, out, "51.77")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "2 row(s), truncated at the row limit")
}

func TestRenderer_ResultJSON(t *testing.T) {
	var buf bytes.Buffer
	r := renderer{w: &buf, format: outputJSON}

	require.NoError(t, r.result(sampleResult()))

	var got resultJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"title", "price"}, got.Columns)
	assert.Equal(t, 2, got.RowCount)
	assert.True(t, got.Truncated)
	assert.Equal(t, "A Light in the Attic", got.Rows[0]["title"])
	assert.Nil(t, got.Rows[1]["price"])
}

func TestRenderer_AnswerJSON(t *testing.T) {
	var buf bytes.Buffer
	r := renderer{w: &buf, format: outputJSON}

	ans := &service.Answer{
		Prepared: service.Prepared{
			Question: "average price?",
			SQL:      "SELECT AVG(price) AS avg_price FROM books",
			Notes:    []string{service.NoteServedFromCache},
		},
		Result: &domain.ResultSet{Columns: []string{"avg_price"}, Rows: [][]any{{35.07}}},
	}
	require.NoError(t, r.answer(ans, "It averages prices."))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "average price?", got["question"])
	assert.Equal(t, "SELECT AVG(price) AS avg_price FROM books", got["sql"])
	assert.Equal(t, "It averages prices.", got["explanation"])
	assert.Equal(t, []any{service.NoteServedFromCache}, got["notes"])
	assert.NotContains(t, got, "schema_context")
}

func TestRenderer_AnswerTableWithoutResult(t *testing.T) {
	var buf bytes.Buffer
	r := renderer{w: &buf, format: outputTable}

	ans := &service.Answer{Prepared: service.Prepared{Question: "q", SQL: "SELECT 1"}}
	require.NoError(t, r.answer(ans, ""))

	out := buf.String()
	assert.Contains(t, out, "SELECT 1")
	assert.NotContains(t, out, "row(s)")
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func TestRenderer_Explanation(t *testing.T) {
	var buf bytes.Buffer
	r := renderer{w: &buf, format: outputJSON}
	require.NoError(t, r.explanation("Averages the price column."))

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Averages the price column.", got["explanation"])

	for _, format := range []string{outputJSON, outputTable} {
		r := renderer{w: failingWriter{}, format: format}
		assert.EqualError(t, r.explanation("text"), "stdout closed", format)
	}

	ans := &service.Answer{Prepared: service.Prepared{Question: "q", SQL: "SELECT 1"}}
	assert.Error(t, renderer{w: failingWriter{}, format: outputJSON}.answer(ans, "text"))
}

func TestRenderer_SavedList(t *testing.T) {
	var buf bytes.Buffer
	r := renderer{w: &buf, format: outputTable}

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.savedList([]domain.SavedQuery{
		{ID: 7, Name: "top books", Tag: "catalogue", CreatedAt: created},
	}))
	out := buf.String()
	assert.Contains(t, out, "top books")
	assert.Contains(t, out, "catalogue")

	buf.Reset()
	r.format = outputJSON
	require.NoError(t, r.savedList(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRenderer_ProfileTable(t *testing.T) {
	var buf bytes.Buffer
	r := renderer{w: &buf, format: outputTable}

	require.NoError(t, r.profile(&port.TableProfile{
		Name:     "books",
		RowCount: 20,
		Columns: []port.ColumnStats{
			{Name: "author_id", DataType: "INTEGER", NullFraction: 0.2, DistinctCount: 2, Cardinality: domain.CardinalityLowCardinality},
		},
		InferredFKs: []port.InferredFK{
			{ColumnName: "author_id", ReferencedTable: "authors", ReferencedColumn: "id", Confidence: "high", Reason: "naming"},
		},
	}))

	out := buf.String()
	assert.Contains(t, out, "(20 rows)")
	assert.Contains(t, out, "20.0%")
	assert.Contains(t, out, "author_id -> authors.id")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"x", "x"},
		{[]byte("raw"), "raw"},
		{int64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
		{"line one\nline two", "line one line two"},
		{time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "2026-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}

	long := strings.Repeat("a", maxCellWidth+10)
	got := formatValue(long)
	assert.Equal(t, maxCellWidth, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
