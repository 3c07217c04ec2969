// Package audit persists one record per SQL execution attempt so that an
// operator can review what the model asked the database to do.
package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/guillermoBallester/asksql/internal/core/port"
)

// Verdicts written to the log.
const (
	VerdictAllowed  = "allowed"
	VerdictRejected = "rejected"
	VerdictFailed   = "failed"
)

// Record is one NDJSON line. SQLHash groups executions of the same statement
// regardless of surrounding whitespace or letter case.
type Record struct {
	Time       time.Time `json:"ts"`
	Verdict    string    `json:"verdict"`
	Source     string    `json:"source,omitempty"`
	Tool       string    `json:"tool,omitempty"`
	Question   string    `json:"question,omitempty"`
	SQL        string    `json:"sql"`
	SQLHash    string    `json:"sql_hash"`
	Reason     string    `json:"reason,omitempty"`
	Rows       int       `json:"rows"`
	Truncated  bool      `json:"truncated,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

func newRecord(now time.Time, e port.AuditEntry) Record {
	r := Record{
		Time:       now.UTC(),
		Verdict:    verdict(e),
		Source:     e.Source,
		Tool:       e.Tool,
		Question:   e.Question,
		SQL:        e.SQL,
		SQLHash:    HashSQL(e.SQL),
		Reason:     e.Reason,
		Rows:       e.RowsReturned,
		Truncated:  e.Truncated,
		DurationMS: e.DurationMS,
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	return r
}

func verdict(e port.AuditEntry) string {
	switch {
	case e.Rejected:
		return VerdictRejected
	case e.Err != nil:
		return VerdictFailed
	default:
		return VerdictAllowed
	}
}

// HashSQL returns the first 12 hex characters of the SHA-256 of the
// statement with whitespace collapsed and letters lowered.
func HashSQL(sql string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(sql), " "))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:12]
}

// FileAuditor appends records to a file, one JSON object per line. Writes are
// flushed after each record so a crash loses at most the line in flight.
type FileAuditor struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	now func() time.Time
}

// NewFileAuditor opens path for appending, creating it and its parent
// directory when needed.
func NewFileAuditor(path string) (*FileAuditor, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{f: f, w: bufio.NewWriter(f), now: time.Now}, nil
}

// Record never fails the caller; encoding or I/O errors drop the line.
func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	line, err := json.Marshal(newRecord(a.now(), entry))
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return
	}
	_, _ = a.w.Write(append(line, '\n'))
	_ = a.w.Flush()
}

// Close is idempotent.
func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	flushErr := a.w.Flush()
	closeErr := a.f.Close()
	a.f = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// NoopAuditor discards everything.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, port.AuditEntry) {}
func (NoopAuditor) Close() error                            { return nil }
