package port

import (
	"context"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

// QueryExecutor runs SQL that has already passed the safety gate.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*domain.ResultSet, error)
}
