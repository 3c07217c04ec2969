package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrEmptyCompletion is returned when a model answers with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

const generateSystemPrompt = "You generate a single DuckDB SQL query for the user's question. " +
	"Return only the SQL with no explanation, markdown, or code fences. " +
	"Ensure every selected column has an explicit, meaningful alias so headers are never blank. " +
	"Do not use SELECT *."

const explainSystemPrompt = "You explain what a SQL query does in clear, concise English. " +
	"Use 2-4 short sentences. Do not include markdown."

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z]*\n")
	fenceClose = regexp.MustCompile("\n?```\\s*$")
)

// StripCodeFences removes a surrounding markdown code fence, which models add
// despite being told not to.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceOpen.ReplaceAllString(text, "")
		text = fenceClose.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// Generator implements port.SQLGenerator on top of any LanguageModel.
type Generator struct {
	model  port.LanguageModel
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation
}

func NewGenerator(model port.LanguageModel, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *Generator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &Generator{model: model, logger: logger, tracer: tracer, inst: inst}
}

func (g *Generator) GenerateSQL(ctx context.Context, question, schemaContext string) (string, error) {
	out, err := g.complete(ctx, "generate_sql", port.Prompt{
		System: generateSystemPrompt,
		User:   fmt.Sprintf("Schema:\n%s\n\nQuestion:\n%s\n\nSQL:", schemaContext, question),
	})
	if err != nil {
		return "", err
	}
	sql := StripCodeFences(out)
	if sql == "" {
		return "", ErrEmptyCompletion
	}
	return sql, nil
}

func (g *Generator) ExplainSQL(ctx context.Context, sql, schemaContext string) (string, error) {
	out, err := g.complete(ctx, "explain_sql", port.Prompt{
		System: explainSystemPrompt,
		User:   fmt.Sprintf("Schema:\n%s\n\nSQL:\n%s\n\nExplain:", schemaContext, sql),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *Generator) complete(ctx context.Context, op string, p port.Prompt) (string, error) {
	ctx, span := g.tracer.Start(ctx, "llm."+op,
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", op),
			attribute.String("gen_ai.request.model", g.model.Name()),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := g.model.Complete(ctx, p)
	ms := float64(time.Since(start).Milliseconds())
	g.inst.RecordLLMDuration(ctx, ms)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.ErrorContext(ctx, "llm call failed",
			slog.String("gen_ai.operation.name", op),
			slog.String("gen_ai.request.model", g.model.Name()),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	g.logger.DebugContext(ctx, "llm call completed",
		slog.String("gen_ai.operation.name", op),
		slog.String("gen_ai.request.model", g.model.Name()),
		slog.Float64("duration_ms", ms),
	)
	return out, nil
}
