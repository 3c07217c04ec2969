package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/port"
)

// ProfilerService wraps SchemaProfiler for deep table profiling.
type ProfilerService struct {
	profiler port.SchemaProfiler
}

func NewProfilerService(profiler port.SchemaProfiler) *ProfilerService {
	return &ProfilerService{profiler: profiler}
}

func (s *ProfilerService) ProfileTable(ctx context.Context, tableName string) (*port.TableProfile, error) {
	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return nil, fmt.Errorf("profile: %w", ErrEmptyTableName)
	}
	return s.profiler.ProfileTable(ctx, tableName)
}
