package ddl

import "tabsql/internal/dataset"

// ColumnDef describes a single column of a staging table.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DOUBLE PRECISION)
type ColumnDef struct {
	Name    string
	SQLType string
}

// TableDef holds a table name and its ordered columns.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// TypeMap maps dataset kinds to one backend's SQL types.
type TypeMap struct {
	String  string
	Integer string
	// Unsigned64 holds UInt64 columns, whose upper half does not fit a
	// signed BIGINT. Empty falls back to Integer.
	Unsigned64 string
	Number     string
}

// SQLType returns the type for c under m.
func (m TypeMap) SQLType(c *dataset.Column) string {
	switch c.Kind {
	case dataset.Integer:
		if c.Unsigned && c.Width == 64 && m.Unsigned64 != "" {
			return m.Unsigned64
		}
		return m.Integer
	case dataset.Number:
		return m.Number
	default:
		return m.String
	}
}

// FromDataset derives a table definition named name from the columns of ds.
func FromDataset(name string, ds *dataset.Dataset, m TypeMap) TableDef {
	cols := ds.Columns()
	t := TableDef{Name: name, Columns: make([]ColumnDef, 0, len(cols))}
	for _, c := range cols {
		t.Columns = append(t.Columns, ColumnDef{Name: c.Name, SQLType: m.SQLType(c)})
	}
	return t
}
