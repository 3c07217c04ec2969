package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

func newTestAuditor(t *testing.T, path string) *FileAuditor {
	t.Helper()
	a, err := NewFileAuditor(path)
	require.NoError(t, err)
	a.now = func() time.Time { return fixedNow }
	return a
}

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r), "line %d: %s", len(out)+1, sc.Text())
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestFileAuditor_Verdicts(t *testing.T) {
	t.Parallel()

	violation := fmt.Errorf("validation: %w", domain.RejectUnsafeSQL("DROP TABLE books"))

	tests := []struct {
		name  string
		entry port.AuditEntry
		check func(t *testing.T, r Record)
	}{
		{
			name: "allowed",
			entry: port.AuditEntry{
				Source: "cli", Tool: "ask", Question: "how many books?",
				SQL: "SELECT COUNT(*) AS n FROM books", RowsReturned: 1, DurationMS: 42,
			},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, VerdictAllowed, r.Verdict)
				assert.Equal(t, "how many books?", r.Question)
				assert.Equal(t, 1, r.Rows)
				assert.Equal(t, int64(42), r.DurationMS)
				assert.Empty(t, r.Error)
				assert.Empty(t, r.Reason)
			},
		},
		{
			name: "rejected carries the reason",
			entry: port.AuditEntry{
				Source: "mcp", Tool: "query", SQL: "DROP TABLE books",
				Rejected: true, Reason: `blocked keyword "DROP"`, Err: violation,
			},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, VerdictRejected, r.Verdict)
				assert.Equal(t, `blocked keyword "DROP"`, r.Reason)
				assert.Zero(t, r.Rows)
				assert.Contains(t, r.Error, domain.ErrSafetyViolation.Error())
			},
		},
		{
			name:  "engine failure",
			entry: port.AuditEntry{Tool: "query", SQL: "SELECT nope FROM books", Err: errors.New("binder error")},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, VerdictFailed, r.Verdict)
				assert.Equal(t, "binder error", r.Error)
			},
		},
		{
			name:  "truncated result",
			entry: port.AuditEntry{Tool: "query", SQL: "SELECT * FROM books", RowsReturned: 100, Truncated: true},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, VerdictAllowed, r.Verdict)
				assert.True(t, r.Truncated)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "audit.ndjson")
			a := newTestAuditor(t, path)
			a.Record(context.Background(), tt.entry)
			require.NoError(t, a.Close())

			records := readRecords(t, path)
			require.Len(t, records, 1)
			r := records[0]
			assert.Equal(t, tt.entry.SQL, r.SQL)
			assert.Equal(t, HashSQL(tt.entry.SQL), r.SQLHash)
			assert.True(t, fixedNow.Equal(r.Time))
			assert.Equal(t, time.UTC, r.Time.Location())
			tt.check(t, r)
		})
	}
}

func TestFileAuditor_OmitsEmptyFields(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	a := newTestAuditor(t, path)
	a.Record(context.Background(), port.AuditEntry{SQL: "SELECT 1"})
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"source", "tool", "question", "reason", "error", "truncated"} {
		assert.NotContains(t, raw, key)
	}
	assert.Equal(t, "2026-05-04T07:30:00Z", raw["ts"])
}

func TestHashSQL(t *testing.T) {
	t.Parallel()
	a := HashSQL("SELECT title\n  FROM books")
	assert.Len(t, a, 12)
	assert.Equal(t, a, HashSQL("select title from books"))
	assert.NotEqual(t, a, HashSQL("SELECT price FROM books"))
}

func TestFileAuditor_AppendsAcrossOpens(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "nested", "audit.ndjson")

	for i := range 2 {
		a := newTestAuditor(t, path)
		a.Record(context.Background(), port.AuditEntry{SQL: fmt.Sprintf("SELECT %d", i)})
		require.NoError(t, a.Close())
	}

	records := readRecords(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "SELECT 0", records[0].SQL)
	assert.Equal(t, "SELECT 1", records[1].SQL)
}

func TestFileAuditor_ConcurrentRecords(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	a := newTestAuditor(t, path)

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Record(context.Background(), port.AuditEntry{Tool: "query", SQL: fmt.Sprintf("SELECT %d", i)})
		}()
	}
	wg.Wait()
	require.NoError(t, a.Close())

	assert.Len(t, readRecords(t, path), 40)
}

func TestFileAuditor_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	a := newTestAuditor(t, path)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	a.Record(context.Background(), port.AuditEntry{SQL: "SELECT 1"})
	assert.Empty(t, readRecords(t, path))
}

func TestNewFileAuditor_PathIsDirectory(t *testing.T) {
	t.Parallel()
	_, err := NewFileAuditor(t.TempDir())
	require.Error(t, err)
}

func TestNoopAuditor(t *testing.T) {
	t.Parallel()
	var a port.QueryAuditor = NoopAuditor{}
	a.Record(context.Background(), port.AuditEntry{SQL: "SELECT 1"})
	assert.NoError(t, a.Close())
}
