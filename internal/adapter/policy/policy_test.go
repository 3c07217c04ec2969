package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- LoadFromFile tests ---

func TestLoadFromFile(t *testing.T) {
	yaml := `
context:
  tables:
    books:
      description: "Books scraped from books.toscrape.com"
      columns:
        price: "Price in GBP"
        title:
          description: "Book title"
    orders:
      description: "Purchase orders"
`
	pol, err := LoadFromFile(writeTempFile(t, yaml))
	require.NoError(t, err)
	assert.Len(t, pol.Context.Tables, 2)

	books := pol.Context.Tables["books"]
	assert.Equal(t, "Books scraped from books.toscrape.com", books.Description)
	assert.Equal(t, "Price in GBP", books.Columns["price"].Description)
	assert.Equal(t, "Book title", books.Columns["title"].Description)
	assert.Empty(t, books.Columns["price"].Mask)
}

func TestLoadFromFile_WithMasks(t *testing.T) {
	yaml := `
context:
  tables:
    customers:
      columns:
        email:
          description: "Customer email"
          mask: "redact"
        ssn:
          mask: "null"
        phone:
          mask: "partial"
        card:
          mask: "hash"
`
	pol, err := LoadFromFile(writeTempFile(t, yaml))
	require.NoError(t, err)

	cols := pol.Context.Tables["customers"].Columns
	assert.Equal(t, domain.MaskRedact, cols["email"].Mask)
	assert.Equal(t, domain.MaskNull, cols["ssn"].Mask)
	assert.Equal(t, domain.MaskPartial, cols["phone"].Mask)
	assert.Equal(t, domain.MaskHash, cols["card"].Mask)
}

func TestLoadFromFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"invalid mask", "context:\n  tables:\n    t:\n      columns:\n        c:\n          mask: scramble\n", "invalid value"},
		{"empty table key", "context:\n  tables:\n    \"\":\n      description: x\n", "empty key"},
		{"empty column key", "context:\n  tables:\n    t:\n      columns:\n        \"\": x\n", "empty key"},
		{"case-duplicate tables", "context:\n  tables:\n    Books:\n      description: a\n    books:\n      description: b\n", "same table"},
		{"malformed yaml", "context: [", "parsing policy YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeTempFile(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading policy file")
}

// --- merge tests ---

func testContext() ContextConfig {
	return ContextConfig{Tables: map[string]TableContext{
		"Books": {
			Description: "Scraped catalogue",
			Columns: map[string]ColumnContext{
				"Price":       {Description: "Price in GBP"},
				"buyer_email": {Description: "Buyer", Mask: domain.MaskRedact},
			},
		},
	}}
}

func TestMergeTableDetail(t *testing.T) {
	detail := &port.TableDetail{
		Name: "books",
		Columns: []port.ColumnInfo{
			{Name: "title", DataType: "VARCHAR"},
			{Name: "price", DataType: "DECIMAL(10,2)"},
			{Name: "buyer_email", DataType: "VARCHAR", Description: "already set"},
		},
	}
	MergeTableDetail(detail, testContext())

	assert.Equal(t, "Scraped catalogue", detail.Description)
	assert.Empty(t, detail.Columns[0].Description)
	assert.Equal(t, "Price in GBP", detail.Columns[1].Description)
	assert.Equal(t, "already set", detail.Columns[2].Description)
	assert.Equal(t, "redact", detail.Columns[2].Mask)

	MergeTableDetail(nil, testContext())
}

func TestMergeTableInfoList(t *testing.T) {
	tables := []port.TableInfo{{Name: "books"}, {Name: "authors"}}
	MergeTableInfoList(tables, testContext())
	assert.Equal(t, "Scraped catalogue", tables[0].Description)
	assert.Empty(t, tables[1].Description)
}

func TestMaskSpec(t *testing.T) {
	spec := MaskSpec(testContext())
	assert.Equal(t, map[string]domain.MaskType{"buyer_email": domain.MaskRedact}, spec)
}

// --- decorator tests ---

type stubExplorer struct{}

func (stubExplorer) ListTables(context.Context) ([]port.TableInfo, error) {
	return []port.TableInfo{{Name: "books"}}, nil
}

func (stubExplorer) DescribeTable(_ context.Context, name string) (*port.TableDetail, error) {
	return &port.TableDetail{Name: name, Columns: []port.ColumnInfo{{Name: "price", DataType: "DECIMAL(10,2)"}}}, nil
}

func TestPolicyExplorer(t *testing.T) {
	pol := &Policy{Context: testContext()}
	e := NewPolicyExplorer(stubExplorer{}, pol)

	tables, err := e.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Scraped catalogue", tables[0].Description)

	detail, err := e.DescribeTable(context.Background(), "books")
	require.NoError(t, err)
	assert.Equal(t, "Price in GBP", detail.Columns[0].Description)
}

type stubProfiler struct{}

func (stubProfiler) ProfileTable(_ context.Context, name string) (*port.TableProfile, error) {
	return &port.TableProfile{
		Name: name,
		Columns: []port.ColumnStats{
			{Name: "buyer_email", MinValue: "a@example.com", MaxValue: "z@example.com"},
			{Name: "price", MinValue: "10.00", MaxValue: "59.99"},
		},
		SampleRows: []map[string]any{{"buyer_email": "bob@example.com", "price": 12.5}},
	}, nil
}

func TestMaskingProfiler(t *testing.T) {
	p := NewMaskingProfiler(stubProfiler{}, map[string]domain.MaskType{"buyer_email": domain.MaskRedact})

	profile, err := p.ProfileTable(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "***", profile.SampleRows[0]["buyer_email"])
	assert.Equal(t, 12.5, profile.SampleRows[0]["price"])
	assert.Equal(t, "***", profile.Columns[0].MinValue)
	assert.Equal(t, "***", profile.Columns[0].MaxValue)
	assert.Equal(t, "10.00", profile.Columns[1].MinValue)
}
