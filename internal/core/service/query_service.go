package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type (
	toolNameKey struct{}
	sourceKey   struct{}
	questionKey struct{}
)

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

// WithSource tags the context with the surface (cli, mcp, http) issuing queries.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// WithQuestion attaches the natural-language question a query was generated from.
func WithQuestion(ctx context.Context, question string) context.Context {
	return context.WithValue(ctx, questionKey{}, question)
}

func stringFromCtx(ctx context.Context, key any) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// QueryService orchestrates the safety gate (domain) and execution (infrastructure).
type QueryService struct {
	validator port.QueryValidator
	executor  port.QueryExecutor
	auditor   port.QueryAuditor
	logger    *slog.Logger
	masks     map[string]domain.MaskType // column-name → mask-type (nil = no masking)
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewQueryService(validator port.QueryValidator, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, masks map[string]domain.MaskType, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryService{
		validator: validator,
		executor:  executor,
		auditor:   auditor,
		logger:    logger,
		masks:     masks,
		tracer:    tracer,
		inst:      inst,
	}
}

// Execute runs sql through the safety gate and, if it passes, forwards the
// unchanged text to the executor. A rejected query never reaches the executor.
func (s *QueryService) Execute(ctx context.Context, sql string) (*domain.ResultSet, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, domain.ErrEmptyQuery
	}

	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "duckdb"),
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", sql),
		),
	)
	defer span.End()

	entry := port.AuditEntry{
		Source:   stringFromCtx(ctx, sourceKey{}),
		Tool:     stringFromCtx(ctx, toolNameKey{}),
		Question: stringFromCtx(ctx, questionKey{}),
		SQL:      sql,
	}

	if err := s.validator.Validate(sql); err != nil {
		attrs := []any{
			slog.String("db.operation.name", "query"),
			slog.String("db.statement", sql),
			slog.String("error.type", "validation_error"),
		}
		var v *domain.SafetyViolation
		if errors.As(err, &v) {
			attrs = append(attrs, slog.String("reason", v.Reason))
			entry.Reason = v.Reason
		}
		s.logger.WarnContext(ctx, "query validation rejected", attrs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementRejections(ctx)

		entry.Rejected = true
		entry.Err = err
		s.auditor.Record(ctx, entry)
		return nil, fmt.Errorf("validation: %w", err)
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, sql)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))

	entry.RowsReturned = result.Len()
	entry.Truncated = result != nil && result.Truncated
	entry.DurationMS = durationMS
	entry.Err = err
	s.auditor.Record(ctx, entry)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return nil, err
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(
		attribute.Int("db.response.rows", result.Len()),
		attribute.Bool("db.response.truncated", result.Truncated),
	)
	domain.MaskResult(result, s.masks)

	return result, nil
}
