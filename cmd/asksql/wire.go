package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/guillermoBallester/asksql/internal/adapter/cache"
	"github.com/guillermoBallester/asksql/internal/adapter/duckdb"
	"github.com/guillermoBallester/asksql/internal/adapter/llm"
	"github.com/guillermoBallester/asksql/internal/adapter/mcp"
	"github.com/guillermoBallester/asksql/internal/adapter/policy"
	"github.com/guillermoBallester/asksql/internal/adapter/postgres"
	"github.com/guillermoBallester/asksql/internal/adapter/scraper"
	"github.com/guillermoBallester/asksql/internal/audit"
	"github.com/guillermoBallester/asksql/internal/config"
	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/guillermoBallester/asksql/internal/core/service"
	"github.com/guillermoBallester/asksql/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// app owns configuration, logging and every resource a command opens.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Stack
	render    renderer

	closers []func() error
}

func newApp(ctx context.Context, o config.Overrides, stdout, stderr io.Writer, format string) (*app, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load(o)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout carries results and the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	tel, err := telemetry.Setup(ctx, cfg.OTelEnabled, version)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logger.Debug("configuration loaded",
		slog.String("version", version),
		slog.String("duckdb_path", cfg.DuckDBPath),
		slog.String("llm_provider", cfg.LLMProvider),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.Bool("otel", cfg.OTelEnabled),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		render:    renderer{w: stdout, format: format},
	}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition and flushes
// telemetry last.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("shutdown", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// appServices is the set of core services a surface can expose. Saved is nil
// unless requested.
type appServices struct {
	Explorer *service.ExplorerService
	Profiler *service.ProfilerService
	Query    *service.QueryService
	Ask      *service.AskService
	Saved    *service.SavedQueryService
}

func (s *appServices) mcpServices() mcp.Services {
	return mcp.Services{
		Explorer: s.Explorer,
		Profiler: s.Profiler,
		Query:    s.Query,
		Ask:      s.Ask,
		Saved:    s.Saved,
	}
}

// services opens the analytical store read-only and wires the pipeline.
func (a *app) services(ctx context.Context, withSaved bool) (*appServices, error) {
	db, err := duckdb.Open(ctx, a.cfg.DuckDBPath, true)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.onClose(db.Close)
	a.logger.Info("database opened", slog.String("db.system", "duckdb"), slog.String("path", a.cfg.DuckDBPath))

	var explorer port.SchemaExplorer = duckdb.NewExplorer(db)
	var profiler port.SchemaProfiler = duckdb.NewProfiler(db, a.logger)
	var masks map[string]domain.MaskType

	if a.cfg.PolicyFile != "" {
		pol, err := policy.LoadFromFile(a.cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
		masks = policy.MaskSpec(pol.Context)
		explorer = policy.NewPolicyExplorer(explorer, pol)
		profiler = policy.NewMaskingProfiler(profiler, masks)
		a.logger.Info("policy loaded", slog.String("file", a.cfg.PolicyFile), slog.Int("masked_columns", len(masks)))
	}

	auditor, err := a.auditor()
	if err != nil {
		return nil, err
	}

	tracer := a.telemetry.Tracer
	inst := a.telemetry.Instruments

	executor := duckdb.NewExecutor(db, a.cfg.MaxRows, a.cfg.QueryTimeout)
	explorerSvc := service.NewExplorerService(explorer)
	querySvc := service.NewQueryService(domain.NewSafetyGate(), executor, auditor, a.logger, masks, tracer, inst)
	generator := newLazyGenerator(a.cfg, a.logger, tracer, inst)

	svcs := &appServices{
		Explorer: explorerSvc,
		Profiler: service.NewProfilerService(profiler),
		Query:    querySvc,
		Ask:      service.NewAskService(explorerSvc, generator, querySvc, a.sqlCache(ctx), a.cfg.SQLCacheTTL, a.logger),
	}

	if withSaved {
		store, err := a.savedStore(ctx)
		if err != nil {
			return nil, err
		}
		svcs.Saved = service.NewSavedQueryService(store, querySvc, a.logger)
	}
	return svcs, nil
}

func (a *app) auditor() (port.QueryAuditor, error) {
	if a.cfg.AuditLog == "" {
		return audit.NoopAuditor{}, nil
	}
	fa, err := audit.NewFileAuditor(a.cfg.AuditLog)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	a.onClose(fa.Close)
	a.logger.Info("audit log enabled", slog.String("path", a.cfg.AuditLog))
	return fa, nil
}

// sqlCache connects to Redis when configured. An unreachable cache disables
// caching instead of failing the command.
func (a *app) sqlCache(ctx context.Context) port.SQLCache {
	if a.cfg.RedisURL == "" {
		return port.NoopCache{}
	}
	c, err := cache.Connect(ctx, a.cfg.RedisURL, a.logger)
	if err != nil {
		a.logger.Warn("sql cache disabled",
			slog.String("url", redactDSN(a.cfg.RedisURL)),
			slog.String("error", err.Error()),
		)
		return port.NoopCache{}
	}
	a.onClose(c.Close)
	return c
}

func (a *app) savedStore(ctx context.Context) (port.SavedQueryStore, error) {
	var store port.SavedQueryStore

	if a.cfg.SavedQueriesURL != "" {
		pool, err := postgres.NewPool(ctx, a.cfg.SavedQueriesURL, postgres.PoolOptions{
			MaxConns:        a.cfg.PoolMaxConns,
			MinConns:        a.cfg.PoolMinConns,
			MaxConnLifetime: a.cfg.PoolMaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to saved-query database %s: %w", redactDSN(a.cfg.SavedQueriesURL), err)
		}
		store = postgres.NewSavedQueryStore(pool)
		a.logger.Info("saved-query store connected",
			slog.String("db.system", "postgresql"),
			slog.String("url", redactDSN(a.cfg.SavedQueriesURL)),
		)
	} else {
		db, err := duckdb.Open(ctx, a.cfg.SavedQueriesDB, false)
		if err != nil {
			return nil, fmt.Errorf("opening saved-query database: %w", err)
		}
		store = duckdb.NewSavedQueryStore(db)
	}
	a.onClose(store.Close)

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing saved-query store: %w", err)
	}
	return store, nil
}

// scrapeService opens the analytical store read-write. It must not share a
// process with a read-only handle on the same file.
func (a *app) scrapeService(ctx context.Context) (*service.ScrapeService, error) {
	db, err := duckdb.Open(ctx, a.cfg.DuckDBPath, false)
	if err != nil {
		return nil, fmt.Errorf("opening database for writing: %w", err)
	}
	a.onClose(db.Close)

	var fetcher port.PageFetcher
	if a.cfg.FirecrawlAPIKey != "" {
		fc, err := scraper.NewFirecrawlFetcher(a.cfg.FirecrawlAPIKey, "")
		if err != nil {
			return nil, err
		}
		fetcher = fc
		a.logger.Info("fetching through firecrawl")
	} else {
		fetcher = scraper.NewHTTPFetcher(nil)
	}

	return service.NewScrapeService(
		fetcher,
		scraper.NewBookParser(a.logger),
		duckdb.NewBookWriter(db),
		a.cfg.ScrapeURL,
		a.logger,
	), nil
}

// lazyGenerator builds the language model on first use, so commands and
// tools that never generate SQL work without provider credentials. A failed
// build is retried on the next call.
type lazyGenerator struct {
	cfg    *config.Config
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation

	mu  sync.Mutex
	gen *llm.Generator
}

func newLazyGenerator(cfg *config.Config, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *lazyGenerator {
	return &lazyGenerator{cfg: cfg, logger: logger, tracer: tracer, inst: inst}
}

func (g *lazyGenerator) get(ctx context.Context) (*llm.Generator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.gen != nil {
		return g.gen, nil
	}
	model, err := llm.NewFromConfig(ctx, g.cfg)
	if err != nil {
		return nil, err
	}
	g.logger.Info("language model ready", slog.String("model", model.Name()))
	g.gen = llm.NewGenerator(model, g.logger, g.tracer, g.inst)
	return g.gen, nil
}

func (g *lazyGenerator) GenerateSQL(ctx context.Context, question, schemaContext string) (string, error) {
	gen, err := g.get(ctx)
	if err != nil {
		return "", err
	}
	return gen.GenerateSQL(ctx, question, schemaContext)
}

func (g *lazyGenerator) ExplainSQL(ctx context.Context, sql, schemaContext string) (string, error) {
	gen, err := g.get(ctx)
	if err != nil {
		return "", err
	}
	return gen.ExplainSQL(ctx, sql, schemaContext)
}

// redactDSN masks the password in a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
