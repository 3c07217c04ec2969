package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/guillermoBallester/asksql/internal/adapter/httpapi"
	"github.com/guillermoBallester/asksql/internal/adapter/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(run runnerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio, or the HTTP API and MCP over HTTP",
		Long: `Serve asksql to other programs.

With --transport stdio (the default) the MCP server speaks over stdin and
stdout. With --transport http the JSON API is served under /api and the
streamable MCP endpoint under /mcp; both require the bearer token.`,
		Args: cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			svcs, err := a.services(ctx, true)
			if err != nil {
				return err
			}
			mcpServer := mcp.NewServer(version, svcs.mcpServices(), a.logger, a.telemetry.Tracer, a.telemetry.Instruments)

			if a.cfg.Transport == "http" {
				return serveHTTP(ctx, a, svcs, mcpServer)
			}

			a.logger.Info("serving MCP over stdio", slog.String("version", version))
			stdio := mcpserver.NewStdioServer(mcpServer)
			if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server: %w", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		}),
	}
}

func serveHTTP(ctx context.Context, a *app, svcs *appServices, mcpServer *mcpserver.MCPServer) error {
	router := httpapi.NewRouter(httpapi.Options{
		Version:     version,
		BearerToken: a.cfg.HTTPBearerToken,
		// Leave room for schema building and an LLM round trip on top of the query.
		RequestTimeout: a.cfg.QueryTimeout + 90*time.Second,
		Explorer:       svcs.Explorer,
		Profiler:       svcs.Profiler,
		Query:          svcs.Query,
		Ask:            svcs.Ask,
		Saved:          svcs.Saved,
		MCP:            mcpserver.NewStreamableHTTPServer(mcpServer),
	}, a.logger)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving HTTP", slog.String("addr", a.cfg.HTTPAddr), slog.String("version", version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}

func newScrapeCmd(run runnerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Rebuild the books table from the catalogue page",
		Long: `Fetch the catalogue page (SCRAPE_URL), parse every book and replace the
books table in the DuckDB file. Pages are fetched through Firecrawl when
FIRECRAWL_API_KEY is set and directly otherwise.`,
		Args: cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			svc, err := a.scrapeService(ctx)
			if err != nil {
				return err
			}
			n, err := svc.Build(ctx)
			if err != nil {
				return err
			}
			return a.render.message("loaded %d books into %s", n, a.cfg.DuckDBPath)
		}),
	}
}
