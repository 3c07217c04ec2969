package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/guillermoBallester/asksql/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// Services bundles the application services exposed as MCP tools. A nil
// service leaves its tools unregistered.
type Services struct {
	Explorer *service.ExplorerService
	Profiler *service.ProfilerService
	Query    *service.QueryService
	Ask      *service.AskService
	Saved    *service.SavedQueryService
}

// NewServer creates an MCPServer with tools and logging hooks.
func NewServer(version string, svcs Services, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, svcs, logger)

	return s
}
