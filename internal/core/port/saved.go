package port

import (
	"context"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

// SavedQueryStore persists saved queries. Get returns domain.ErrNotFound for a
// missing id; Delete reports whether a row was removed.
type SavedQueryStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, q domain.SavedQuery) (int64, error)
	List(ctx context.Context, search string) ([]domain.SavedQuery, error)
	Get(ctx context.Context, id int64) (*domain.SavedQuery, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Close() error
}
