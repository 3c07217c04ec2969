package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Outcomes recorded for a tool call.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

var errToolFailed = errors.New("tool returned an error result")

type inflightCall struct {
	tool  string
	start time.Time
	span  trace.Span
}

// callTracker pairs the before and after hooks of one request id.
type callTracker struct {
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation

	mu       sync.Mutex
	inflight map[any]*inflightCall
}

func (t *callTracker) begin(ctx context.Context, id any, req *mcp.CallToolRequest) {
	_, span := t.tracer.Start(ctx, "mcp.tool "+req.Params.Name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("mcp.tool", req.Params.Name),
			attribute.String("mcp.session", sessionID(ctx)),
		),
	)

	t.mu.Lock()
	t.inflight[id] = &inflightCall{tool: req.Params.Name, start: time.Now(), span: span}
	t.mu.Unlock()
}

func (t *callTracker) take(id any) *inflightCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.inflight[id]
	if !ok {
		return nil
	}
	delete(t.inflight, id)
	return c
}

// finish logs the call and closes its span. Gate rejections are reported as
// warnings, not failures: the tool did its job by refusing the SQL.
func (t *callTracker) finish(ctx context.Context, id any, tool, outcome string, cause error) {
	c := t.take(id)
	var elapsed time.Duration
	if c != nil {
		elapsed = time.Since(c.start)
		if tool == "" {
			tool = c.tool
		}
	}
	if tool == "" {
		return
	}

	attrs := []slog.Attr{
		slog.String("mcp.tool", tool),
		slog.String("mcp.session", sessionID(ctx)),
		slog.String("outcome", outcome),
		slog.Duration("duration", elapsed),
	}
	level := slog.LevelInfo
	switch outcome {
	case outcomeRejected:
		level = slog.LevelWarn
	case outcomeError:
		level = slog.LevelError
		if cause != nil {
			attrs = append(attrs, slog.String("error.message", cause.Error()))
		}
	}
	t.logger.LogAttrs(ctx, level, "tool call", attrs...)
	t.inst.RecordToolDuration(ctx, float64(elapsed.Milliseconds()))

	if c == nil {
		return
	}
	c.span.SetAttributes(attribute.String("mcp.outcome", outcome))
	if outcome == outcomeError {
		if cause == nil {
			cause = errToolFailed
		}
		c.span.RecordError(cause)
		c.span.SetStatus(codes.Error, cause.Error())
	}
	c.span.End()
}

// ToolCallHooks logs every tool call with its outcome and records a span and
// the tool duration metric. A nil tracer or instrumentation disables that part.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	t := &callTracker{logger: logger, tracer: tracer, inst: inst, inflight: map[any]*inflightCall{}}

	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(t.begin)
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		t.finish(ctx, id, req.Params.Name, resultOutcome(result), nil)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		if method != mcp.MethodToolsCall {
			return
		}
		tool := ""
		if req, ok := message.(*mcp.CallToolRequest); ok {
			tool = req.Params.Name
		}
		t.finish(ctx, id, tool, outcomeError, err)
	})
	return hooks
}

func resultOutcome(result any) string {
	r, ok := result.(*mcp.CallToolResult)
	if !ok || !r.IsError {
		return outcomeOK
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok && strings.HasPrefix(tc.Text, warningPrefix) {
			return outcomeRejected
		}
	}
	return outcomeError
}

func sessionID(ctx context.Context) string {
	if s := server.ClientSessionFromContext(ctx); s != nil {
		return s.SessionID()
	}
	return ""
}
