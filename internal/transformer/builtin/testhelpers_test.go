package builtin

import (
	"strings"
	"testing"

	"tabsql/internal/dataset"
	"tabsql/internal/schema"
)

// raw builds a dataset of string cells; "" becomes null like the CSV reader.
func raw(t *testing.T, names []string, rows ...[]string) *dataset.Dataset {
	t.Helper()
	d := dataset.New(names...)
	for _, r := range rows {
		vals := make([]any, len(r))
		for i, s := range r {
			if s != "" {
				vals[i] = s
			}
		}
		if err := d.AppendRow(vals); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	return d
}

func mustSchema(t *testing.T, doc string) *schema.Schema {
	t.Helper()
	s, err := schema.Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("schema.Decode: %v", err)
	}
	return s
}

func column(t *testing.T, d *dataset.Dataset, name string) *dataset.Column {
	t.Helper()
	c, ok := d.Column(name)
	if !ok {
		t.Fatalf("column %q missing", name)
	}
	return c
}
