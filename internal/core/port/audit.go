package port

import "context"

// AuditEntry is one execution attempt. Rejected entries carry the gate's
// Reason and never have rows or a duration.
type AuditEntry struct {
	Source       string
	Tool         string
	Question     string
	SQL          string
	RowsReturned int
	Truncated    bool
	DurationMS   int64
	Rejected     bool
	Reason       string
	Err          error
}

// QueryAuditor records query audit events. Record must not fail the query.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
