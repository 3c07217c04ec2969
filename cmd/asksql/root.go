package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/guillermoBallester/asksql/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// globalFlags are the persistent flags shared by every subcommand. Only flags
// the user actually set end up in config.Overrides.
type globalFlags struct {
	duckDBPath      string
	savedQueriesDB  string
	provider        string
	model           string
	logLevel        string
	maxRows         int
	queryTimeout    time.Duration
	policyFile      string
	auditLog        string
	transport       string
	httpAddr        string
	httpBearerToken string
	otel            bool
	output          string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.duckDBPath, "duckdb-path", "", "DuckDB file to query (env: DUCKDB_PATH)")
	fs.StringVar(&g.savedQueriesDB, "saved-queries-db", "", "DuckDB file for saved queries (env: SAVED_QUERIES_DB)")
	fs.StringVar(&g.provider, "provider", "", "LLM provider: openai, anthropic or bedrock (env: LLM_PROVIDER)")
	fs.StringVar(&g.model, "model", "", "model identifier for the selected provider")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (env: LOG_LEVEL)")
	fs.IntVar(&g.maxRows, "max-rows", 0, "maximum rows returned per query (env: MAX_ROWS)")
	fs.DurationVar(&g.queryTimeout, "query-timeout", 0, "per-query timeout (env: QUERY_TIMEOUT)")
	fs.StringVar(&g.policyFile, "policy-file", "", "YAML data dictionary with descriptions and masks (env: POLICY_FILE)")
	fs.StringVar(&g.auditLog, "audit-log", "", "NDJSON audit log path (env: AUDIT_LOG)")
	fs.StringVar(&g.transport, "transport", "", "serve transport: stdio or http (env: TRANSPORT)")
	fs.StringVar(&g.httpAddr, "http-addr", "", "listen address for the http transport (env: HTTP_ADDR)")
	fs.StringVar(&g.httpBearerToken, "http-bearer-token", "", "bearer token for the http transport (env: HTTP_BEARER_TOKEN)")
	fs.BoolVar(&g.otel, "otel", false, "export traces and metrics over OTLP (env: OTEL_ENABLED)")
	fs.StringVarP(&g.output, "output", "o", outputTable, "output format: table or json")
}

func (g *globalFlags) overrides(fs *pflag.FlagSet) config.Overrides {
	var o config.Overrides
	if fs.Changed("duckdb-path") {
		o.DuckDBPath = &g.duckDBPath
	}
	if fs.Changed("saved-queries-db") {
		o.SavedQueriesDB = &g.savedQueriesDB
	}
	if fs.Changed("provider") {
		o.LLMProvider = &g.provider
	}
	if fs.Changed("model") {
		o.Model = &g.model
	}
	if fs.Changed("log-level") {
		o.LogLevel = &g.logLevel
	}
	if fs.Changed("max-rows") {
		o.MaxRows = &g.maxRows
	}
	if fs.Changed("query-timeout") {
		o.QueryTimeout = &g.queryTimeout
	}
	if fs.Changed("policy-file") {
		o.PolicyFile = &g.policyFile
	}
	if fs.Changed("audit-log") {
		o.AuditLog = &g.auditLog
	}
	if fs.Changed("transport") {
		o.Transport = &g.transport
	}
	if fs.Changed("http-addr") {
		o.HTTPAddr = &g.httpAddr
	}
	if fs.Changed("http-bearer-token") {
		o.HTTPBearerToken = &g.httpBearerToken
	}
	o.OTelEnabled = g.otel
	return o
}

// parseFlags parses the global flags alone, outside of any command.
func parseFlags(args []string) (config.Overrides, error) {
	var g globalFlags
	fs := pflag.NewFlagSet("asksql", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	g.register(fs)
	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}
	return g.overrides(fs), nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "asksql",
		Short: "Ask questions about a DuckDB database in plain language",
		Long: `asksql turns natural-language questions into DuckDB SQL with an LLM,
checks every statement against a read-only safety gate and runs the
survivors on a read-only connection.

Configuration comes from environment variables (and a .env file in the
working directory); flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch g.output {
			case outputTable, outputJSON:
				return nil
			default:
				return fmt.Errorf("invalid --output value %q: must be %q or %q", g.output, outputTable, outputJSON)
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	g.register(root.PersistentFlags())

	// appRunner loads configuration with the flags the user set, builds the
	// application and hands it to fn. The app is closed when fn returns.
	appRunner := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g.overrides(cmd.Flags()), cmd.OutOrStdout(), cmd.ErrOrStderr(), g.output)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd.Context(), a, args)
		}
	}

	root.AddCommand(
		newAskCmd(appRunner),
		newQueryCmd(appRunner),
		newExplainCmd(appRunner),
		newSchemaCmd(appRunner),
		newProfileCmd(appRunner),
		newSavedCmd(appRunner),
		newScrapeCmd(appRunner),
		newServeCmd(appRunner),
		newVersionCmd(),
	)
	return root
}

// runnerFunc adapts an app-level command body to cobra's RunE.
type runnerFunc func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the asksql version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "asksql", version)
			return err
		},
	}
}
