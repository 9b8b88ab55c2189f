package builtin

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"tabsql/internal/dataset"
)

// maxPreview caps the rows and values quoted in a single violation.
const maxPreview = 5

// trimCell trims string cells (Unicode white space, NBSP included). A cell
// that is empty after trimming stays "" when keepEmpty is set and is null
// otherwise. Non-string cells are returned unchanged.
func trimCell(v any, keepEmpty bool) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" && !keepEmpty {
		return nil
	}
	return s
}

// zeroPad left-pads s with '0' to width runes. Longer values are kept.
func zeroPad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat("0", width-n) + s
}

// preview renders offending values the way they appear in messages.
func preview(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = previewValue(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// previewValue quotes strings and prints other cells in their CSV form.
func previewValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return dataset.FormatValue(t)
	}
}

// offenders collects offending row indices and values, keeping at most
// limit of them while counting all.
type offenders struct {
	limit int
	count int
	rows  []int
	vals  []any
}

func (o *offenders) add(row int, v any) {
	o.count++
	if len(o.rows) < o.limit {
		o.rows = append(o.rows, row)
		o.vals = append(o.vals, v)
	}
}

func (o *offenders) empty() bool { return o.count == 0 }
