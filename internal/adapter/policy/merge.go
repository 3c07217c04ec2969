package policy

import (
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

// MergeTableDetail fills empty descriptions and mask annotations on detail
// from the policy.
func MergeTableDetail(detail *port.TableDetail, ctx ContextConfig) {
	if detail == nil {
		return
	}

	tc, ok := ctx.Table(detail.Name)
	if !ok {
		return
	}

	if detail.Description == "" {
		detail.Description = tc.Description
	}

	for i, col := range detail.Columns {
		cc, ok := tc.Column(col.Name)
		if !ok {
			continue
		}
		if col.Description == "" {
			detail.Columns[i].Description = cc.Description
		}
		detail.Columns[i].Mask = string(cc.Mask)
	}
}

// MergeTableInfoList fills empty table descriptions from the policy.
func MergeTableInfoList(tables []port.TableInfo, ctx ContextConfig) {
	for i, t := range tables {
		if tc, ok := ctx.Table(t.Name); ok && t.Description == "" {
			tables[i].Description = tc.Description
		}
	}
}

// MaskSpec flattens the policy into a column-name → mask map for result
// masking. Result sets carry no table names, so a mask declared on one table
// applies to any column of that name.
func MaskSpec(ctx ContextConfig) map[string]domain.MaskType {
	spec := make(map[string]domain.MaskType)
	for _, tc := range ctx.Tables {
		for col, cc := range tc.Columns {
			if cc.Mask != "" {
				spec[strings.ToLower(col)] = cc.Mask
			}
		}
	}
	return spec
}
