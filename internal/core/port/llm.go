package port

import "context"

// Prompt is a single-turn instruction for a language model.
type Prompt struct {
	System string
	User   string
}

// LanguageModel is a chat completion backend.
type LanguageModel interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// SQLGenerator turns questions into DuckDB SQL and explains SQL back.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question, schemaContext string) (string, error)
	ExplainSQL(ctx context.Context, sql, schemaContext string) (string, error)
}
