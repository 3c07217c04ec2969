package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/guillermoBallester/asksql/internal/audit"
	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/guillermoBallester/asksql/internal/core/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type toolDurations struct {
	port.NoopInstrumentation
	mu    sync.Mutex
	count int
}

func (d *toolDurations) RecordToolDuration(context.Context, float64) {
	d.mu.Lock()
	d.count++
	d.mu.Unlock()
}

// syncBuffer guards a bytes.Buffer shared by the logger and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		if m["msg"] == "tool call" {
			out = append(out, m)
		}
	}
	return out
}

func TestToolCallHooks_Outcomes(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	inst := &toolDurations{}

	f := newFixture()
	f.executor.result = &domain.ResultSet{Columns: []string{"n"}, Rows: [][]any{{int64(20)}}}
	querySvc := service.NewQueryService(domain.NewSafetyGate(), f.executor, audit.NoopAuditor{}, logger, nil, nil, nil)
	s := NewServer("0.0.1", Services{
		Explorer: service.NewExplorerService(f.explorer),
		Query:    querySvc,
	}, logger, tp.Tracer("test"), inst)

	callTool(t, s, "query", map[string]any{"sql": "SELECT COUNT(*) AS n FROM books"})
	callTool(t, s, "query", map[string]any{"sql": "DROP TABLE books"})
	f.explorer.err = errors.New("catalog unavailable")
	callTool(t, s, "list_tables", nil)

	entries := logs.lines(t)
	require.Len(t, entries, 3)

	assert.Equal(t, "query", entries[0]["mcp.tool"])
	assert.Equal(t, outcomeOK, entries[0]["outcome"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.NotEmpty(t, entries[0]["mcp.session"])

	assert.Equal(t, outcomeRejected, entries[1]["outcome"])
	assert.Equal(t, "WARN", entries[1]["level"])

	assert.Equal(t, "list_tables", entries[2]["mcp.tool"])
	assert.Equal(t, outcomeError, entries[2]["outcome"])
	assert.Equal(t, "ERROR", entries[2]["level"])

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "mcp.tool query", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[1].Status.Code, "a rejection is not a span error")
	assert.Equal(t, codes.Error, spans[2].Status.Code)

	assert.Equal(t, 3, inst.count)
	assert.Equal(t, 1, f.executor.calls, "rejected SQL never reaches the executor")
}

func TestToolCallHooks_NilTracerAndInstrumentation(t *testing.T) {
	hooks := ToolCallHooks(testLogger(), nil, nil)
	require.NotNil(t, hooks)

	s := server.NewMCPServer("test", "0.1.0", server.WithToolCapabilities(true), server.WithHooks(hooks))
	s.AddTool(mcp.NewTool("ping"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("pong"), nil
	})

	result := callTool(t, s, "ping", nil)
	assert.Equal(t, "pong", toolText(result))
}

func TestResultOutcome(t *testing.T) {
	assert.Equal(t, outcomeOK, resultOutcome(mcp.NewToolResultText("fine")))
	assert.Equal(t, outcomeOK, resultOutcome(nil))
	assert.Equal(t, outcomeRejected, resultOutcome(mcp.NewToolResultError(warningPrefix+"unsafe SQL detected")))
	assert.Equal(t, outcomeError, resultOutcome(mcp.NewToolResultError("internal error")))
}
