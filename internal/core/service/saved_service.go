package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

// SavedQueryService manages saved queries and re-runs them through the gate.
type SavedQueryService struct {
	store   port.SavedQueryStore
	queries *QueryService
	logger  *slog.Logger
}

func NewSavedQueryService(store port.SavedQueryStore, queries *QueryService, logger *slog.Logger) *SavedQueryService {
	return &SavedQueryService{store: store, queries: queries, logger: logger}
}

// Save normalizes q and stores it, returning the stored copy with its id.
func (s *SavedQueryService) Save(ctx context.Context, q domain.SavedQuery) (*domain.SavedQuery, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	id, err := s.store.Save(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("saving query: %w", err)
	}
	s.logger.InfoContext(ctx, "query saved", slog.Int64("id", id), slog.String("name", q.Name))
	return s.store.Get(ctx, id)
}

func (s *SavedQueryService) List(ctx context.Context, search string) ([]domain.SavedQuery, error) {
	return s.store.List(ctx, strings.TrimSpace(search))
}

func (s *SavedQueryService) Get(ctx context.Context, id int64) (*domain.SavedQuery, error) {
	return s.store.Get(ctx, id)
}

// Delete returns domain.ErrNotFound when no query has the given id.
func (s *SavedQueryService) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting query %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("saved query %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RunSaved executes a stored query. Its SQL passes the safety gate again.
func (s *SavedQueryService) RunSaved(ctx context.Context, id int64) (*domain.SavedQuery, *domain.ResultSet, error) {
	q, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.queries.Execute(WithQuestion(ctx, q.Question), q.SQL)
	if err != nil {
		return q, nil, err
	}
	return q, res, nil
}
