package policy

import (
	"context"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

// MaskingProfiler masks sample rows and hides min/max of masked columns in
// profile results.
type MaskingProfiler struct {
	inner port.SchemaProfiler
	masks map[string]domain.MaskType
}

func NewMaskingProfiler(inner port.SchemaProfiler, masks map[string]domain.MaskType) *MaskingProfiler {
	return &MaskingProfiler{inner: inner, masks: masks}
}

func (p *MaskingProfiler) ProfileTable(ctx context.Context, tableName string) (*port.TableProfile, error) {
	profile, err := p.inner.ProfileTable(ctx, tableName)
	if err != nil {
		return nil, err
	}

	domain.MaskRecords(profile.SampleRows, p.masks)
	for i, col := range profile.Columns {
		for name, mt := range p.masks {
			if !strings.EqualFold(name, col.Name) || mt == "" {
				continue
			}
			profile.Columns[i].MinValue = maskString(col.MinValue, mt)
			profile.Columns[i].MaxValue = maskString(col.MaxValue, mt)
		}
	}
	return profile, nil
}

func maskString(s string, mt domain.MaskType) string {
	if s == "" {
		return ""
	}
	v, _ := domain.ApplyMask(s, mt).(string)
	return v
}
