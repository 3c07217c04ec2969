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
)

var (
	ErrEmptyQuestion = errors.New("question cannot be empty")
	ErrLanguageModel = errors.New("language model request failed")
)

// NoteServedFromCache is attached to a Prepared answer whose SQL came from the cache.
const NoteServedFromCache = "served from cache"

// Prepared is generated SQL that has not been executed yet.
type Prepared struct {
	Question      string   `json:"question"`
	SQL           string   `json:"sql"`
	SchemaContext string   `json:"schema_context"`
	Notes         []string `json:"notes,omitempty"`
}

// Answer is a prepared question together with its result.
type Answer struct {
	Prepared
	Result *domain.ResultSet `json:"result"`
}

// AskService turns questions into SQL and runs them through QueryService.
type AskService struct {
	explorer  *ExplorerService
	generator port.SQLGenerator
	queries   *QueryService
	cache     port.SQLCache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

func NewAskService(explorer *ExplorerService, generator port.SQLGenerator, queries *QueryService, cache port.SQLCache, cacheTTL time.Duration, logger *slog.Logger) *AskService {
	if cache == nil {
		cache = port.NoopCache{}
	}
	return &AskService{
		explorer:  explorer,
		generator: generator,
		queries:   queries,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

func (s *AskService) SchemaContext(ctx context.Context) (string, error) {
	return s.explorer.SchemaContext(ctx)
}

// Prepare builds the schema context and generates SQL for question, consulting
// the cache first. Cache failures are logged and otherwise ignored.
func (s *AskService) Prepare(ctx context.Context, question string) (*Prepared, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	schema, err := s.explorer.SchemaContext(ctx)
	if err != nil {
		return nil, err
	}
	p := &Prepared{Question: question, SchemaContext: schema}

	cached, ok, err := s.cache.Get(ctx, question, schema)
	if err != nil {
		s.logger.WarnContext(ctx, "sql cache lookup failed", slog.String("error", err.Error()))
	}
	if ok && cached != "" {
		p.SQL = cached
		p.Notes = append(p.Notes, NoteServedFromCache)
		return p, nil
	}

	sql, err := s.generator.GenerateSQL(ctx, question, schema)
	if err != nil {
		return nil, fmt.Errorf("generating sql: %w: %w", ErrLanguageModel, err)
	}
	p.SQL = sql

	if err := s.cache.Set(ctx, question, schema, sql, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "sql cache store failed", slog.String("error", err.Error()))
	}
	return p, nil
}

// Run prepares question and executes the generated SQL. When execution fails
// the returned Answer still carries the prepared SQL.
func (s *AskService) Run(ctx context.Context, question string) (*Answer, error) {
	p, err := s.Prepare(ctx, question)
	if err != nil {
		return nil, err
	}

	ans := &Answer{Prepared: *p}
	res, err := s.queries.Execute(WithQuestion(ctx, p.Question), p.SQL)
	if err != nil {
		return ans, err
	}
	ans.Result = res
	return ans, nil
}

// Explain describes sql in plain language. An empty schemaContext is rebuilt
// from the database.
func (s *AskService) Explain(ctx context.Context, sql, schemaContext string) (string, error) {
	if strings.TrimSpace(sql) == "" {
		return "", domain.ErrEmptyQuery
	}
	if strings.TrimSpace(schemaContext) == "" {
		var err error
		if schemaContext, err = s.explorer.SchemaContext(ctx); err != nil {
			return "", err
		}
	}
	out, err := s.generator.ExplainSQL(ctx, sql, schemaContext)
	if err != nil {
		return "", fmt.Errorf("explaining sql: %w: %w", ErrLanguageModel, err)
	}
	return out, nil
}
