package domain

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// MaskType is a column masking strategy applied to query results.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid reports whether m is a known strategy. The zero value means "no mask".
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// ApplyMask transforms a single value. Hash and partial masks turn any value
// into a string; MaskNull returns nil.
func ApplyMask(value any, maskType MaskType) any {
	if value == nil {
		return nil
	}

	switch maskType {
	case MaskRedact:
		return "***"
	case MaskHash:
		h := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
		return fmt.Sprintf("%x", h)
	case MaskPartial:
		return maskPartial(value)
	case MaskNull:
		return nil
	default:
		return value
	}
}

// maskPartial keeps the last 4 runes and stars out the rest.
func maskPartial(value any) string {
	runes := []rune(fmt.Sprintf("%v", value))
	if len(runes) <= 4 {
		return "***" + string(runes)
	}
	for i := 0; i < len(runes)-4; i++ {
		runes[i] = '*'
	}
	return string(runes)
}

// MaskResult applies column masks to res in place. Column names are matched
// case-insensitively because DuckDB identifiers are. A column renamed with an
// alias in the query is not matched.
func MaskResult(res *ResultSet, masks map[string]MaskType) {
	if res == nil || len(masks) == 0 {
		return
	}

	lowered := make(map[string]MaskType, len(masks))
	for col, mt := range masks {
		lowered[strings.ToLower(col)] = mt
	}

	type target struct {
		idx  int
		mask MaskType
	}
	var targets []target
	for i, col := range res.Columns {
		if mt, ok := lowered[strings.ToLower(col)]; ok && mt != "" {
			targets = append(targets, target{idx: i, mask: mt})
		}
	}
	if len(targets) == 0 {
		return
	}

	for _, row := range res.Rows {
		for _, tg := range targets {
			if tg.idx < len(row) {
				row[tg.idx] = ApplyMask(row[tg.idx], tg.mask)
			}
		}
	}
}

// MaskRecords applies masks to map-shaped rows such as profile samples.
func MaskRecords(rows []map[string]any, masks map[string]MaskType) {
	if len(masks) == 0 {
		return
	}
	for _, row := range rows {
		for col, val := range row {
			for maskCol, mt := range masks {
				if strings.EqualFold(col, maskCol) {
					row[col] = ApplyMask(val, mt)
				}
			}
		}
	}
}
