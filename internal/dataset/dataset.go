// Package dataset holds the in-memory columnar table that flows through a
// run: raw text straight out of the CSV reader, typed after coercion, and the
// result table returned by the SQL engine.
//
// A cell is nil when null. Non-null cells are string, int64, uint64 or
// float64 depending on the column kind.
package dataset

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the storage kind of a column.
type Kind int

const (
	String Kind = iota
	Integer
	Number
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Number:
		return "number"
	default:
		return "string"
	}
}

// Column is one named, typed column.
type Column struct {
	Name string
	Kind Kind

	// Width and Unsigned describe integer columns (8, 16, 32 or 64 bits).
	Width    int
	Unsigned bool

	// Categories is the closed value domain of an enum column. Values
	// outside it stay representable; the validator reports them.
	Categories []string

	Values []any
}

// Dataset is an ordered collection of equally long columns.
type Dataset struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New returns an empty dataset with string columns named names.
func New(names ...string) *Dataset {
	d := &Dataset{index: make(map[string]int, len(names))}
	for _, n := range names {
		d.cols = append(d.cols, &Column{Name: n, Kind: String})
		d.index[n] = len(d.cols) - 1
	}
	return d
}

// FromRows builds a dataset from row-major values. Column kinds are inferred
// from the non-null values: all integers → Integer, integers and floats →
// Number, anything else → String (values formatted as text).
func FromRows(names []string, rows [][]any) (*Dataset, error) {
	d := New(names...)
	for i, r := range rows {
		if len(r) != len(names) {
			return nil, fmt.Errorf("dataset: row %d has %d values, want %d", i, len(r), len(names))
		}
	}
	for c, col := range d.cols {
		vals := make([]any, len(rows))
		for i, r := range rows {
			vals[i] = normalize(r[c])
		}
		col.Kind = inferKind(vals)
		if col.Kind == Integer {
			col.Width = 64
		}
		for i, v := range vals {
			vals[i] = castTo(col.Kind, v)
		}
		col.Values = vals
	}
	d.rows = len(rows)
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.rows }

// Columns returns the columns in order. The slice must not be modified.
func (d *Dataset) Columns() []*Column { return d.cols }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Has reports whether a column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// AppendRow appends one row of values aligned with the columns.
func (d *Dataset) AppendRow(vals []any) error {
	if len(vals) != len(d.cols) {
		return fmt.Errorf("dataset: row has %d values, want %d", len(vals), len(d.cols))
	}
	for i, c := range d.cols {
		c.Values = append(c.Values, vals[i])
	}
	d.rows++
	return nil
}

// SetColumn replaces (or appends) a column. Its length must match Len()
// unless the dataset has no columns yet.
func (d *Dataset) SetColumn(c *Column) error {
	if len(d.cols) > 0 && len(c.Values) != d.rows {
		return fmt.Errorf("dataset: column %q has %d values, want %d", c.Name, len(c.Values), d.rows)
	}
	if i, ok := d.index[c.Name]; ok {
		d.cols[i] = c
		return nil
	}
	if len(d.cols) == 0 {
		d.rows = len(c.Values)
	}
	d.cols = append(d.cols, c)
	d.index[c.Name] = len(d.cols) - 1
	return nil
}

// Row returns row i as values aligned with Columns().
func (d *Dataset) Row(i int) []any {
	out := make([]any, len(d.cols))
	for c, col := range d.cols {
		out[c] = col.Values[i]
	}
	return out
}

// Rows returns all rows, row-major.
func (d *Dataset) Rows() [][]any {
	out := make([][]any, d.rows)
	for i := range out {
		out[i] = d.Row(i)
	}
	return out
}

// Clone returns a copy whose columns and value slices can be replaced
// without affecting d. Cell values are immutable and shared.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{index: make(map[string]int, len(d.cols)), rows: d.rows}
	for i, c := range d.cols {
		cp := *c
		cp.Values = append([]any(nil), c.Values...)
		cp.Categories = append([]string(nil), c.Categories...)
		out.cols = append(out.cols, &cp)
		out.index[c.Name] = i
	}
	return out
}

// FormatValue renders a cell the way it is written to CSV and shown in
// diagnostics: nil → "", floats keep a trailing ".0" when integral.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return formatFloat(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return s + ".0"
	}
	return s
}

// normalize maps driver-level values onto the dataset cell types.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, int64, uint64, float64:
		return t
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case uint:
		return uint64(t)
	case float32:
		return float64(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func inferKind(vals []any) Kind {
	kind := Integer
	seen := false
	for _, v := range vals {
		switch v.(type) {
		case nil:
			continue
		case int64, uint64:
			seen = true
		case float64:
			seen = true
			kind = Number
		default:
			return String
		}
	}
	if !seen {
		return String
	}
	return kind
}

func castTo(k Kind, v any) any {
	if v == nil {
		return nil
	}
	switch k {
	case Number:
		switch t := v.(type) {
		case int64:
			return float64(t)
		case uint64:
			return float64(t)
		}
	case String:
		if _, ok := v.(string); !ok {
			return FormatValue(v)
		}
	}
	return v
}
