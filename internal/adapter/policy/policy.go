package policy

import (
	"fmt"
	"strings"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled configuration loaded from a YAML file:
// a data dictionary that is shown to the SQL generator, and column masks
// applied to every result.
type Policy struct {
	Context ContextConfig `yaml:"context"`
}

// ContextConfig maps DuckDB table names to business descriptions.
type ContextConfig struct {
	Tables map[string]TableContext `yaml:"tables"`
}

// TableContext provides business descriptions and masking rules for a table and its columns.
type TableContext struct {
	Description string                   `yaml:"description"`
	Columns     map[string]ColumnContext `yaml:"columns"`
}

// ColumnContext holds a column's business description and optional mask directive.
type ColumnContext struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML accepts a bare string as shorthand for a description.
//
//	columns:
//	  price: "Price in GBP"          # shorthand
//	  email:
//	    description: "Buyer email"
//	    mask: "redact"
func (cc *ColumnContext) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cc.Description = value.Value
		return nil
	}
	type alias ColumnContext
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column context: %w", err)
	}
	*cc = ColumnContext(a)
	return nil
}

// Table looks up a table ignoring case, as DuckDB resolves identifiers.
func (c ContextConfig) Table(name string) (TableContext, bool) {
	if tc, ok := c.Tables[name]; ok {
		return tc, true
	}
	for key, tc := range c.Tables {
		if strings.EqualFold(key, name) {
			return tc, true
		}
	}
	return TableContext{}, false
}

// Column looks up a column ignoring case.
func (t TableContext) Column(name string) (ColumnContext, bool) {
	if cc, ok := t.Columns[name]; ok {
		return cc, true
	}
	for key, cc := range t.Columns {
		if strings.EqualFold(key, name) {
			return cc, true
		}
	}
	return ColumnContext{}, false
}
