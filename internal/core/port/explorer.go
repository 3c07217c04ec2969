package port

import "context"

type TableInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	DefaultValue string `json:"default_value,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	Description  string `json:"description,omitempty"`
	Mask         string `json:"mask,omitempty"`
}

type TableDetail struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Columns     []ColumnInfo `json:"columns"`
}

// SchemaExplorer lists the tables of the analytical store. Its metadata
// queries are issued by the adapter itself and do not go through the gate.
type SchemaExplorer interface {
	ListTables(ctx context.Context) ([]TableInfo, error)
	DescribeTable(ctx context.Context, tableName string) (*TableDetail, error)
}
