// Package builtin holds the schema-driven transformers applied to datasets:
// coercion into typed columns, constraint validation and key checks.
package builtin

import (
	"tabsql/internal/dataset"
	"tabsql/internal/schema"
)

// missingRequired returns the required schema fields that are not columns of
// ds, in declaration order.
func missingRequired(s *schema.Schema, ds *dataset.Dataset) []string {
	var out []string
	for _, name := range s.Required() {
		if !ds.Has(name) {
			out = append(out, name)
		}
	}
	return out
}
