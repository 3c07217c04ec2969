package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock LanguageModel ---

type mockModel struct {
	reply   string
	err     error
	prompts []port.Prompt
}

func (m *mockModel) Name() string { return "mock/test" }

func (m *mockModel) Complete(_ context.Context, p port.Prompt) (string, error) {
	m.prompts = append(m.prompts, p)
	return m.reply, m.err
}

type countingInst struct {
	port.NoopInstrumentation
	llmCalls int
}

func (c *countingInst) RecordLLMDuration(context.Context, float64) { c.llmCalls++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT title AS t FROM books\n```", "SELECT title AS t FROM books"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"empty fence", "```sql\n```", ""},
		{"close fence on the sql line", "```sql\nSELECT 1```", "SELECT 1"},
		{"trailing space after close fence", "```sql\nSELECT 1\n```  ", "SELECT 1"},
		{"surrounding whitespace", "  \n```duckdb\nSELECT 1\n```\n ", "SELECT 1"},
		{"no closing fence", "```sql\nSELECT 1", "SELECT 1"},
		{"inner backticks kept", "SELECT '```' AS x", "SELECT '```' AS x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestGenerator_GenerateSQL(t *testing.T) {
	t.Parallel()
	model := &mockModel{reply: "```sql\nSELECT AVG(price) AS avg_price FROM books\n```"}
	inst := &countingInst{}
	g := NewGenerator(model, testLogger(), nil, inst)

	sql, err := g.GenerateSQL(context.Background(), "What is the average price?", "Tables:\n- books: title VARCHAR, price DECIMAL(10,2)")
	require.NoError(t, err)
	assert.Equal(t, "SELECT AVG(price) AS avg_price FROM books", sql)
	assert.Equal(t, 1, inst.llmCalls)

	require.Len(t, model.prompts, 1)
	p := model.prompts[0]
	assert.Contains(t, p.System, "single DuckDB SQL query")
	assert.Contains(t, p.System, "Do not use SELECT *.")
	assert.Equal(t, "Schema:\nTables:\n- books: title VARCHAR, price DECIMAL(10,2)\n\nQuestion:\nWhat is the average price?\n\nSQL:", p.User)
}

func TestGenerator_GenerateSQL_Empty(t *testing.T) {
	t.Parallel()
	g := NewGenerator(&mockModel{reply: "```sql\n```"}, testLogger(), nil, nil)

	_, err := g.GenerateSQL(context.Background(), "q", "Tables:")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestGenerator_ModelError(t *testing.T) {
	t.Parallel()
	boom := errors.New("rate limited")
	g := NewGenerator(&mockModel{err: boom}, testLogger(), nil, nil)

	_, err := g.GenerateSQL(context.Background(), "q", "Tables:")
	assert.ErrorIs(t, err, boom)

	_, err = g.ExplainSQL(context.Background(), "SELECT 1", "Tables:")
	assert.ErrorIs(t, err, boom)
}

func TestGenerator_ExplainSQL(t *testing.T) {
	t.Parallel()
	model := &mockModel{reply: "  Computes the mean book price.  \n"}
	g := NewGenerator(model, testLogger(), nil, nil)

	out, err := g.ExplainSQL(context.Background(), "SELECT AVG(price) AS avg_price FROM books", "Tables:\n- books: price DECIMAL(10,2)")
	require.NoError(t, err)
	assert.Equal(t, "Computes the mean book price.", out)

	p := model.prompts[0]
	assert.Contains(t, p.System, "2-4 short sentences")
	assert.Equal(t, "Schema:\nTables:\n- books: price DECIMAL(10,2)\n\nSQL:\nSELECT AVG(price) AS avg_price FROM books\n\nExplain:", p.User)
}
