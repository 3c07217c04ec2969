package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptyQuery      = errors.New("empty query")
	ErrSafetyViolation = errors.New("unsafe SQL detected: only single-statement read-only queries are allowed")
	ErrNotFound        = errors.New("not found")
)

// BlockedKeywords are SQL keywords that mark a query as mutating when they
// appear as a standalone word anywhere in the text.
var BlockedKeywords = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"ALTER",
	"CREATE",
	"ATTACH",
	"COPY",
	"PRAGMA",
	"EXPORT",
	"IMPORT",
}

// blockPattern matches a blocked keyword bounded by anything that is not a
// Unicode letter, digit or underscore. RE2's \b only knows ASCII word
// characters, which would split identifiers such as dropé.
var blockPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + strings.Join(BlockedKeywords, "|") + `)(?:[^\p{L}\p{N}_]|$)`)

// Rejection reasons reported in a Verdict.
const (
	ReasonEmpty              = "empty query"
	ReasonMultipleStatements = "multiple statements"
)

// Verdict is the outcome of evaluating a single candidate query.
type Verdict struct {
	Safe   bool
	Reason string
}

// SafetyViolation is returned when a candidate query fails the read-only gate.
// Its message is fixed; Reason carries the specific rule that fired.
type SafetyViolation struct {
	Reason string
}

func (e *SafetyViolation) Error() string {
	return ErrSafetyViolation.Error()
}

func (e *SafetyViolation) Is(target error) bool {
	return target == ErrSafetyViolation
}

// Evaluate inspects the literal text of sql and reports whether it may run
// against a read-only store. Inspection is lexical only: semicolons and
// keywords inside string literals or comments are treated like any other text,
// so such queries can be rejected even when they are harmless.
func Evaluate(sql string) Verdict {
	if strings.TrimSpace(sql) == "" {
		return Verdict{Reason: ReasonEmpty}
	}
	if hasMultipleStatements(sql) {
		return Verdict{Reason: ReasonMultipleStatements}
	}
	if m := blockPattern.FindStringSubmatch(sql); m != nil {
		return Verdict{Reason: fmt.Sprintf("blocked keyword %q", strings.ToUpper(m[1]))}
	}
	return Verdict{Safe: true}
}

// IsReadOnly reports whether sql is a single statement free of blocked keywords.
func IsReadOnly(sql string) bool {
	return Evaluate(sql).Safe
}

// RejectUnsafeSQL returns a *SafetyViolation when sql is not read-only.
func RejectUnsafeSQL(sql string) error {
	v := Evaluate(sql)
	if v.Safe {
		return nil
	}
	return &SafetyViolation{Reason: v.Reason}
}

// hasMultipleStatements splits on every ';' and counts the non-blank pieces.
// A trailing ';' leaves a single piece and is accepted.
func hasMultipleStatements(sql string) bool {
	stripped := strings.TrimSpace(sql)
	if !strings.Contains(stripped, ";") {
		return false
	}
	n := 0
	for _, part := range strings.Split(stripped, ";") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n != 1
}

// SafetyGate adapts the read-only check to the QueryValidator port.
type SafetyGate struct{}

func NewSafetyGate() *SafetyGate {
	return &SafetyGate{}
}

// Validate rejects anything that is not a single read-only statement.
func (g *SafetyGate) Validate(sql string) error {
	return RejectUnsafeSQL(sql)
}
