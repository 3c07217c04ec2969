package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "asksql"

const sourceMCP = "mcp"

// warningPrefix starts the tool error text of a gate rejection.
const warningPrefix = "warning: "

// Tool descriptions
const (
	descListTables = "List all tables in the analytical DuckDB database, with descriptions from the data dictionary when available. " +
		"Call this first to discover what data exists."

	descDescribeTable = "Describe a table's columns: name, DuckDB type, nullability, default, primary key flag, " +
		"plus data-dictionary descriptions and masking rules. Use this before writing SQL against a table."

	descProfileTable = "Deep-profile a single table: row count, per-column null fraction, approximate distinct count " +
		"with a cardinality class, min/max values, a few sample rows and foreign keys inferred from *_id naming. " +
		"Masked columns stay masked in samples and ranges."

	descTableNameParam = "Name of the table (case-insensitive)"

	descGenerateSQL = "Translate a natural-language question into a single read-only DuckDB query using the current schema. " +
		"The SQL is returned but NOT executed; pass it to the query tool to run it."

	descAsk = "Answer a natural-language question end to end: generate DuckDB SQL, check it with the read-only safety gate, " +
		"execute it and return the rows. Unsafe SQL is never executed and is reported as a warning."

	descQuestionParam = "The question to answer, e.g. 'What is the average book price?'"

	descQuery = "Execute a read-only DuckDB query and return columns and rows. " +
		"Only a single statement is accepted and INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, ATTACH, COPY, PRAGMA, " +
		"EXPORT and IMPORT are rejected anywhere in the text, including inside string literals. " +
		"A server-side row limit and query timeout are enforced; truncated results are flagged."

	descQueryParam = "SQL query to execute (one read-only statement)"

	descExplainSQL = "Explain in plain language (2-4 sentences) what a SQL query does, in terms of the schema."

	descSchemaContextParam = "Schema context the SQL was generated against (optional, rebuilt from the database when omitted)"

	descSaveQuery = "Save a question and its SQL for later re-use. The name defaults to the question."

	descListSaved = "List saved queries, newest first. Optional case-insensitive search over name, question and tag."

	descGetSaved = "Fetch one saved query by id."

	descRunSaved = "Re-run a saved query by id. The stored SQL passes the safety gate again before execution."

	descDeleteSaved = "Delete a saved query by id."

	descIDParam = "Saved query id"
)

// queryResult is the JSON shape returned for executed SQL.
type queryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated,omitempty"`
}

func newQueryResult(res *domain.ResultSet) queryResult {
	cols := res.Columns
	if cols == nil {
		cols = []string{}
	}
	return queryResult{Columns: cols, Rows: res.Records(), RowCount: res.Len(), Truncated: res.Truncated}
}

type askResult struct {
	Question string   `json:"question"`
	SQL      string   `json:"sql"`
	Notes    []string `json:"notes,omitempty"`
	queryResult
}

func RegisterTools(s *server.MCPServer, svcs Services, logger *slog.Logger) {
	if svcs.Explorer != nil {
		s.AddTool(
			mcp.NewTool("list_tables",
				mcp.WithDescription(descListTables),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			listTablesHandler(svcs.Explorer, logger),
		)

		s.AddTool(
			mcp.NewTool("describe_table",
				mcp.WithDescription(descDescribeTable),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("table_name",
					mcp.Required(),
					mcp.Description(descTableNameParam),
				),
			),
			describeTableHandler(svcs.Explorer, logger),
		)
	}

	if svcs.Profiler != nil {
		s.AddTool(
			mcp.NewTool("profile_table",
				mcp.WithDescription(descProfileTable),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("table_name",
					mcp.Required(),
					mcp.Description(descTableNameParam),
				),
			),
			profileTableHandler(svcs.Profiler, logger),
		)
	}

	if svcs.Ask != nil {
		s.AddTool(
			mcp.NewTool("generate_sql",
				mcp.WithDescription(descGenerateSQL),
				mcp.WithString("question",
					mcp.Required(),
					mcp.Description(descQuestionParam),
				),
			),
			generateSQLHandler(svcs.Ask, logger),
		)

		s.AddTool(
			mcp.NewTool("ask",
				mcp.WithDescription(descAsk),
				mcp.WithString("question",
					mcp.Required(),
					mcp.Description(descQuestionParam),
				),
			),
			askHandler(svcs.Ask, logger),
		)

		s.AddTool(
			mcp.NewTool("explain_sql",
				mcp.WithDescription(descExplainSQL),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description("The SQL to explain"),
				),
				mcp.WithString("schema_context",
					mcp.Description(descSchemaContextParam),
				),
			),
			explainSQLHandler(svcs.Ask, logger),
		)
	}

	if svcs.Query != nil {
		s.AddTool(
			mcp.NewTool("query",
				mcp.WithDescription(descQuery),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description(descQueryParam),
				),
			),
			queryHandler(svcs.Query, logger),
		)
	}

	if svcs.Saved != nil {
		registerSavedTools(s, svcs.Saved, logger)
	}
}

func registerSavedTools(s *server.MCPServer, saved *service.SavedQueryService, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("save_query",
			mcp.WithDescription(descSaveQuery),
			mcp.WithString("question", mcp.Required(), mcp.Description("The question the SQL answers")),
			mcp.WithString("sql", mcp.Required(), mcp.Description("The SQL to save")),
			mcp.WithString("name", mcp.Description("Display name (defaults to the question, max 80 characters)")),
			mcp.WithString("tag", mcp.Description("Optional tag")),
			mcp.WithString("notes", mcp.Description("Optional notes")),
		),
		saveQueryHandler(saved, logger),
	)

	s.AddTool(
		mcp.NewTool("list_saved_queries",
			mcp.WithDescription(descListSaved),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("search", mcp.Description("Case-insensitive substring to filter by")),
		),
		listSavedHandler(saved, logger),
	)

	s.AddTool(
		mcp.NewTool("get_saved_query",
			mcp.WithDescription(descGetSaved),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithNumber("id", mcp.Required(), mcp.Description(descIDParam)),
		),
		getSavedHandler(saved, logger),
	)

	s.AddTool(
		mcp.NewTool("run_saved_query",
			mcp.WithDescription(descRunSaved),
			mcp.WithNumber("id", mcp.Required(), mcp.Description(descIDParam)),
		),
		runSavedHandler(saved, logger),
	)

	s.AddTool(
		mcp.NewTool("delete_saved_query",
			mcp.WithDescription(descDeleteSaved),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithNumber("id", mcp.Required(), mcp.Description(descIDParam)),
		),
		deleteSavedHandler(saved, logger),
	)
}

func listTablesHandler(explorer *service.ExplorerService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := explorer.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "list tables")), nil
		}
		return jsonResult(tables)
	}
}

func describeTableHandler(explorer *service.ExplorerService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName := stringArg(request, "table_name")
		if tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		detail, err := explorer.DescribeTable(ctx, tableName)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "describe table")), nil
		}
		return jsonResult(detail)
	}
}

func profileTableHandler(profiler *service.ProfilerService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName := stringArg(request, "table_name")
		if tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		profile, err := profiler.ProfileTable(ctx, tableName)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "profile table")), nil
		}
		return jsonResult(profile)
	}
}

func generateSQLHandler(ask *service.AskService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := stringArg(request, "question")
		if question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		prepared, err := ask.Prepare(ctx, question)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "generate sql")), nil
		}
		return jsonResult(prepared)
	}
}

func askHandler(ask *service.AskService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := stringArg(request, "question")
		if question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		ctx = service.WithSource(service.WithToolName(ctx, "ask"), sourceMCP)
		ans, err := ask.Run(ctx, question)
		if err != nil {
			msg := sanitizeError(logger, err, "ask")
			if ans != nil && ans.SQL != "" {
				msg += "\nsql: " + ans.SQL
			}
			return mcp.NewToolResultError(msg), nil
		}

		return jsonResult(askResult{
			Question:    ans.Question,
			SQL:         ans.SQL,
			Notes:       ans.Notes,
			queryResult: newQueryResult(ans.Result),
		})
	}
}

func explainSQLHandler(ask *service.AskService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql := stringArg(request, "sql")
		if sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		explanation, err := ask.Explain(ctx, sql, stringArg(request, "schema_context"))
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "explain sql")), nil
		}
		return mcp.NewToolResultText(explanation), nil
	}
}

func queryHandler(query *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql := stringArg(request, "sql")
		if sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithSource(service.WithToolName(ctx, "query"), sourceMCP)
		res, err := query.Execute(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "query")), nil
		}
		return jsonResult(newQueryResult(res))
	}
}

func saveQueryHandler(saved *service.SavedQueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := saved.Save(ctx, domain.SavedQuery{
			Name:     stringArg(request, "name"),
			Question: stringArg(request, "question"),
			SQL:      stringArg(request, "sql"),
			Tag:      stringArg(request, "tag"),
			Notes:    stringArg(request, "notes"),
		})
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "save query")), nil
		}
		return jsonResult(q)
	}
}

func listSavedHandler(saved *service.SavedQueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queries, err := saved.List(ctx, stringArg(request, "search"))
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "list saved queries")), nil
		}
		if queries == nil {
			queries = []domain.SavedQuery{}
		}
		return jsonResult(queries)
	}
}

func getSavedHandler(saved *service.SavedQueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := idArg(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		q, err := saved.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "get saved query")), nil
		}
		return jsonResult(q)
	}
}

func runSavedHandler(saved *service.SavedQueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := idArg(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ctx = service.WithSource(service.WithToolName(ctx, "run_saved_query"), sourceMCP)
		q, res, err := saved.RunSaved(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "run saved query")), nil
		}
		return jsonResult(askResult{Question: q.Question, SQL: q.SQL, queryResult: newQueryResult(res)})
	}
}

func deleteSavedHandler(saved *service.SavedQueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := idArg(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := saved.Delete(ctx, id); err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "delete saved query")), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("deleted saved query %d", id)), nil
	}
}

func stringArg(request mcp.CallToolRequest, key string) string {
	s, _ := request.GetArguments()[key].(string)
	return strings.TrimSpace(s)
}

// idArg accepts the id as a JSON number or a numeric string.
func idArg(request mcp.CallToolRequest) (int64, error) {
	switch v := request.GetArguments()["id"].(type) {
	case float64:
		if v == float64(int64(v)) && v > 0 {
			return int64(v), nil
		}
	case string:
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, errors.New("id must be a positive integer")
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sanitizeError turns err into a message safe to show the client. Errors the
// caller can act on pass through; anything else is logged and replaced.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	switch {
	case errors.Is(err, domain.ErrSafetyViolation):
		msg := warningPrefix + domain.ErrSafetyViolation.Error()
		var v *domain.SafetyViolation
		if errors.As(err, &v) && v.Reason != "" {
			msg += " (" + v.Reason + ")"
		}
		return msg
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, service.ErrEmptyQuestion),
		errors.Is(err, service.ErrEmptyTableName),
		errors.Is(err, domain.ErrInvalidSavedQuery),
		errors.Is(err, domain.ErrNoTables):
		return err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("%s: not found", op)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s: query timed out", op)
	case errors.Is(err, domain.ErrQueryFailed):
		// Binder and parser messages from DuckDB pass through.
		return err.Error()
	}

	logger.Error("tool operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return fmt.Sprintf("internal error: %s failed, check server logs for details", op)
}
