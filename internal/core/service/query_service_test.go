package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/guillermoBallester/asksql/internal/audit"
	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock QueryExecutor ---

type mockExecutor struct {
	executeCalled bool
	lastSQL       string
	result        *domain.ResultSet
	err           error
}

func (m *mockExecutor) Execute(_ context.Context, sql string) (*domain.ResultSet, error) {
	m.executeCalled = true
	m.lastSQL = sql
	return m.result, m.err
}

// --- recording QueryAuditor ---

type recordingAuditor struct {
	mu      sync.Mutex
	entries []port.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, e port.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) Close() error { return nil }

// --- counting Instrumentation ---

type countingInst struct {
	port.NoopInstrumentation
	queries, errors, rejections int
}

func (c *countingInst) IncrementQueryCount(context.Context)  { c.queries++ }
func (c *countingInst) IncrementQueryErrors(context.Context) { c.errors++ }
func (c *countingInst) IncrementRejections(context.Context)  { c.rejections++ }

func newQueryService(exec port.QueryExecutor, masks map[string]domain.MaskType) *QueryService {
	return NewQueryService(domain.NewSafetyGate(), exec, audit.NoopAuditor{}, testLogger(), masks, nil, nil)
}

// --- tests ---

func TestQueryService_ValidSelect(t *testing.T) {
	exec := &mockExecutor{
		result: &domain.ResultSet{Columns: []string{"title", "price"}, Rows: [][]any{{"Dune", 9.5}}},
	}
	svc := newQueryService(exec, nil)

	res, err := svc.Execute(context.Background(), "SELECT title, price FROM books")
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	assert.Equal(t, "SELECT title, price FROM books", exec.lastSQL)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "Dune", res.Rows[0][0])
}

func TestQueryService_Rejections(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"insert", "INSERT INTO books (title) VALUES ('x')"},
		{"drop", "DROP TABLE books"},
		{"delete", "DELETE FROM books WHERE price > 10"},
		{"update", "UPDATE books SET price = 0"},
		{"pragma", "PRAGMA table_info('books')"},
		{"attach", "ATTACH 'other.duckdb' AS other"},
		{"two statements", "SELECT 1; SELECT 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{}
			svc := newQueryService(exec, nil)

			_, err := svc.Execute(context.Background(), tt.sql)
			require.ErrorIs(t, err, domain.ErrSafetyViolation)
			assert.Contains(t, err.Error(), "validation: ")
			assert.False(t, exec.executeCalled, "executor should not be called for rejected queries")
		})
	}
}

func TestQueryService_RejectionIsAuditedAndCounted(t *testing.T) {
	exec := &mockExecutor{}
	aud := &recordingAuditor{}
	inst := &countingInst{}
	svc := NewQueryService(domain.NewSafetyGate(), exec, aud, testLogger(), nil, nil, inst)

	ctx := WithSource(WithToolName(context.Background(), "query"), "mcp")
	_, err := svc.Execute(ctx, "DROP TABLE books")
	require.Error(t, err)

	require.Len(t, aud.entries, 1)
	e := aud.entries[0]
	assert.True(t, e.Rejected)
	assert.Equal(t, `blocked keyword "DROP"`, e.Reason)
	assert.Equal(t, "mcp", e.Source)
	assert.Equal(t, "query", e.Tool)
	assert.Equal(t, "DROP TABLE books", e.SQL)
	assert.ErrorIs(t, e.Err, domain.ErrSafetyViolation)
	assert.Equal(t, 1, inst.rejections)
	assert.Zero(t, inst.queries)
}

func TestQueryService_AuditsSuccess(t *testing.T) {
	exec := &mockExecutor{result: &domain.ResultSet{Columns: []string{"n"}, Rows: [][]any{{1}, {2}}}}
	aud := &recordingAuditor{}
	inst := &countingInst{}
	svc := NewQueryService(domain.NewSafetyGate(), exec, aud, testLogger(), nil, nil, inst)

	ctx := WithQuestion(WithSource(context.Background(), "cli"), "how many?")
	_, err := svc.Execute(ctx, "SELECT n FROM t")
	require.NoError(t, err)

	require.Len(t, aud.entries, 1)
	e := aud.entries[0]
	assert.False(t, e.Rejected)
	assert.Equal(t, "cli", e.Source)
	assert.Equal(t, "how many?", e.Question)
	assert.Equal(t, 2, e.RowsReturned)
	assert.NoError(t, e.Err)
	assert.Equal(t, 1, inst.queries)
}

func TestQueryService_AllowsIdentifiersContainingKeywords(t *testing.T) {
	exec := &mockExecutor{result: &domain.ResultSet{Columns: []string{"created_at"}}}
	svc := newQueryService(exec, nil)

	_, err := svc.Execute(context.Background(), "SELECT created_at AS created FROM events;")
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	assert.Equal(t, "SELECT created_at AS created FROM events;", exec.lastSQL, "sql must be forwarded unchanged")
}

func TestQueryService_ExecutorError(t *testing.T) {
	exec := &mockExecutor{err: fmt.Errorf("binder error: table not found")}
	inst := &countingInst{}
	svc := NewQueryService(domain.NewSafetyGate(), exec, audit.NoopAuditor{}, testLogger(), nil, nil, inst)

	_, err := svc.Execute(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table not found")
	assert.Equal(t, 1, inst.errors)
}

func TestQueryService_EmptyQuery(t *testing.T) {
	for _, sql := range []string{"", "   ", "\n\t"} {
		exec := &mockExecutor{}
		svc := newQueryService(exec, nil)

		_, err := svc.Execute(context.Background(), sql)
		require.ErrorIs(t, err, domain.ErrEmptyQuery)
		assert.False(t, exec.executeCalled)
	}
}

func TestQueryService_WithMasks(t *testing.T) {
	exec := &mockExecutor{
		result: &domain.ResultSet{
			Columns: []string{"id", "EMAIL", "name"},
			Rows: [][]any{
				{1, "alice@example.com", "Alice"},
				{2, "bob@example.com", "Bob"},
			},
		},
	}
	masks := map[string]domain.MaskType{"email": domain.MaskRedact}
	svc := newQueryService(exec, masks)

	res, err := svc.Execute(context.Background(), "SELECT id, email AS EMAIL, name FROM users")
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.Equal(t, "***", res.Rows[0][1])
	assert.Equal(t, "***", res.Rows[1][1])
	assert.Equal(t, "Alice", res.Rows[0][2])
}

func TestQueryService_NoMasks(t *testing.T) {
	exec := &mockExecutor{
		result: &domain.ResultSet{Columns: []string{"id", "email"}, Rows: [][]any{{1, "alice@example.com"}}},
	}
	svc := newQueryService(exec, nil)

	res, err := svc.Execute(context.Background(), "SELECT id, email FROM users")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.Rows[0][1])
}
