// Package ddl models the staging tables engines create for bound datasets
// and renders CREATE TABLE statements for them.
//
// Identifiers are double-quoted with embedded quotes doubled, which every
// supported engine accepts (MySQL sessions run with ANSI_QUOTES).
package ddl

import (
	"fmt"
	"strings"
)

// CreateOptions tweaks the rendered statement for a backend.
type CreateOptions struct {
	// Temporary is the keyword placed between CREATE and TABLE, such as
	// "TEMP" or "TEMPORARY". Empty creates a regular table.
	Temporary string
}

// BuildCreateTableSQL renders:
//
//	CREATE [<Temporary>] TABLE "<name>" (
//	  "<col1>" <type1>,
//	  ...
//	)
func BuildCreateTableSQL(t TableDef, opt CreateOptions) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", t.Name)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", c.Name)
		}
		cols = append(cols, QuoteIdent(c.Name)+" "+typ)
	}

	create := "CREATE TABLE "
	if kw := strings.TrimSpace(opt.Temporary); kw != "" {
		create = "CREATE " + kw + " TABLE "
	}
	return create + QuoteIdent(t.Name) + " (\n  " + strings.Join(cols, ",\n  ") + "\n)", nil
}

// BuildInsertSQL renders a single-row INSERT with one placeholder per
// column. placeholder returns the marker for the 1-based argument n.
func BuildInsertSQL(t TableDef, placeholder func(n int) string) string {
	names := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = QuoteIdent(c.Name)
		marks[i] = placeholder(i + 1)
	}
	return "INSERT INTO " + QuoteIdent(t.Name) + " (" + strings.Join(names, ", ") +
		") VALUES (" + strings.Join(marks, ", ") + ")"
}

// BuildDropTableSQL renders DROP TABLE IF EXISTS for the named table.
func BuildDropTableSQL(name string) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(name)
}

// QuoteIdent double-quotes name, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Question is the "?" placeholder style.
func Question(int) string { return "?" }
