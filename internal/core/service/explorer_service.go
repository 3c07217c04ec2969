package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

var ErrEmptyTableName = errors.New("table name is required")

// ExplorerService exposes table metadata and renders the schema context the
// SQL generator is prompted with.
type ExplorerService struct {
	explorer port.SchemaExplorer
}

func NewExplorerService(explorer port.SchemaExplorer) *ExplorerService {
	return &ExplorerService{explorer: explorer}
}

func (s *ExplorerService) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	return s.explorer.ListTables(ctx)
}

func (s *ExplorerService) DescribeTable(ctx context.Context, tableName string) (*port.TableDetail, error) {
	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return nil, fmt.Errorf("describe: %w", ErrEmptyTableName)
	}
	return s.explorer.DescribeTable(ctx, tableName)
}

// SchemaContext lists every table with its columns. An empty database yields
// domain.ErrNoTables.
func (s *ExplorerService) SchemaContext(ctx context.Context) (string, error) {
	tables, err := s.explorer.ListTables(ctx)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}

	schemas := make([]domain.TableSchema, 0, len(tables))
	for _, t := range tables {
		detail, err := s.explorer.DescribeTable(ctx, t.Name)
		if err != nil {
			return "", fmt.Errorf("describing table %s: %w", t.Name, err)
		}
		ts := domain.TableSchema{Name: detail.Name, Description: detail.Description}
		if ts.Description == "" {
			ts.Description = t.Description
		}
		for _, c := range detail.Columns {
			ts.Columns = append(ts.Columns, domain.ColumnSchema{Name: c.Name, Type: c.DataType})
		}
		schemas = append(schemas, ts)
	}
	return domain.BuildSchemaContext(schemas)
}
