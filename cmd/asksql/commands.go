package main

import (
	"context"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/service"
	"github.com/spf13/cobra"
)

const sourceCLI = "cli"

func newAskCmd(run runnerFunc) *cobra.Command {
	var (
		explain  bool
		noRun    bool
		saveName string
		tag      string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Generate SQL for a question, check it and run it",
		Long: `Generate DuckDB SQL for a natural-language question using the configured
LLM provider, check it against the read-only gate and run it.

Examples:
  asksql ask "What is the average book price?"
  asksql ask --explain "Which ten books are the most expensive?"
  asksql ask --save "top books" --tag catalogue "Which ten books are the most expensive?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			question := strings.Join(args, " ")
			svcs, err := a.services(ctx, saveName != "")
			if err != nil {
				return err
			}
			ctx = service.WithSource(ctx, sourceCLI)

			if noRun {
				p, err := svcs.Ask.Prepare(ctx, question)
				if err != nil {
					return err
				}
				return a.render.answer(&service.Answer{Prepared: *p}, explainIf(ctx, svcs.Ask, explain, p))
			}

			ans, err := svcs.Ask.Run(ctx, question)
			if err != nil {
				if ans != nil && ans.SQL != "" && a.render.format == outputTable {
					a.render.prepared(&ans.Prepared)
				}
				return err
			}

			if err := a.render.answer(ans, explainIf(ctx, svcs.Ask, explain, &ans.Prepared)); err != nil {
				return err
			}

			if saveName == "" {
				return nil
			}
			saved, err := svcs.Saved.Save(ctx, domain.SavedQuery{
				Name:     saveName,
				Question: ans.Question,
				SQL:      ans.SQL,
				Tag:      tag,
				Notes:    notes,
			})
			if err != nil {
				return err
			}
			if a.render.format == outputJSON {
				return nil
			}
			return a.render.message("saved as #%d %q", saved.ID, saved.Name)
		}),
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "also explain the generated SQL")
	cmd.Flags().BoolVar(&noRun, "no-run", false, "generate and check the SQL without running it")
	cmd.Flags().StringVar(&saveName, "save", "", "save the question and SQL under this name after a successful run")
	cmd.Flags().StringVar(&tag, "tag", "", "tag for --save")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for --save")
	return cmd
}

// explainIf returns the model's explanation of p.SQL when requested. A failed
// explanation is reported in its place rather than failing the command.
func explainIf(ctx context.Context, ask *service.AskService, want bool, p *service.Prepared) string {
	if !want {
		return ""
	}
	text, err := ask.Explain(ctx, p.SQL, p.SchemaContext)
	if err != nil {
		return "explanation unavailable: " + err.Error()
	}
	return text
}

func newQueryCmd(run runnerFunc) *cobra.Command {
	var sql string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run SQL through the read-only gate",
		Long: `Run a DuckDB SQL statement. The statement must pass the read-only gate:
a single statement with none of the blocked keywords.

Examples:
  asksql query --sql "SELECT title, price FROM books ORDER BY price DESC LIMIT 5"
  asksql query -o json --sql "SELECT COUNT(*) AS total FROM books"`,
		Args: cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			svcs, err := a.services(ctx, false)
			if err != nil {
				return err
			}
			res, err := svcs.Query.Execute(service.WithSource(ctx, sourceCLI), sql)
			if err != nil {
				return err
			}
			return a.render.result(res)
		}),
	}

	cmd.Flags().StringVarP(&sql, "sql", "q", "", "SQL query to execute (required)")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

func newExplainCmd(run runnerFunc) *cobra.Command {
	var sql string

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain SQL in plain language",
		Long: `Ask the configured LLM provider to explain a SQL statement against the
current schema. Nothing is executed.`,
		Args: cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			svcs, err := a.services(ctx, false)
			if err != nil {
				return err
			}
			text, err := svcs.Ask.Explain(ctx, sql, "")
			if err != nil {
				return err
			}
			return a.render.explanation(text)
		}),
	}

	cmd.Flags().StringVarP(&sql, "sql", "q", "", "SQL to explain (required)")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

func newSchemaCmd(run runnerFunc) *cobra.Command {
	var showContext bool

	cmd := &cobra.Command{
		Use:   "schema [table]",
		Short: "List tables or describe one table",
		Long: `Without arguments, list the tables of the database with their policy
descriptions. With a table name, describe its columns.

--context prints the schema text sent to the language model instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			svcs, err := a.services(ctx, false)
			if err != nil {
				return err
			}

			switch {
			case showContext:
				text, err := svcs.Explorer.SchemaContext(ctx)
				if err != nil {
					return err
				}
				if a.render.format == outputJSON {
					return a.render.json(map[string]string{"schema_context": text})
				}
				return a.render.message("%s", text)
			case len(args) == 1:
				detail, err := svcs.Explorer.DescribeTable(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render.tableDetail(detail)
			default:
				tables, err := svcs.Explorer.ListTables(ctx)
				if err != nil {
					return err
				}
				return a.render.tables(tables)
			}
		}),
	}

	cmd.Flags().BoolVar(&showContext, "context", false, "print the schema context given to the language model")
	return cmd
}

func newProfileCmd(run runnerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <table>",
		Short: "Profile a table: row count, null rates, cardinality, samples",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			svcs, err := a.services(ctx, false)
			if err != nil {
				return err
			}
			p, err := svcs.Profiler.ProfileTable(ctx, args[0])
			if err != nil {
				return err
			}
			return a.render.profile(p)
		}),
	}
}
