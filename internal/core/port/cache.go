package port

import (
	"context"
	"time"
)

// SQLCache stores generated SQL keyed by question and schema. Implementations
// report a miss as ("", false, nil).
type SQLCache interface {
	Get(ctx context.Context, question, schemaContext string) (string, bool, error)
	Set(ctx context.Context, question, schemaContext, sql string, ttl time.Duration) error
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string) (string, bool, error) { return "", false, nil }
func (NoopCache) Set(context.Context, string, string, string, time.Duration) error {
	return nil
}
