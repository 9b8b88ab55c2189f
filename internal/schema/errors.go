package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Violation codes. They prefix each line of an aggregated error message.
const (
	CodeCoerce     = "coerce"
	CodeSchema     = "schema"
	CodeNull       = "null"
	CodePattern    = "pattern"
	CodeEnum       = "enum"
	CodeRange      = "range"
	CodePrimaryKey = "primaryKey"
)

// Violation is one structured coercion or validation finding.
type Violation struct {
	Code    string
	Field   string // empty for dataset-level findings (primaryKey)
	Message string
	Rows    []int // 0-based row indices, capped by the producer
	Values  []any // offending values aligned with Rows when available
}

func (v Violation) Error() string {
	return fmt.Sprintf("[%s] %s", v.Code, v.Message)
}

// ViolationList accumulates violations across a whole pass. The zero value
// is ready to use.
type ViolationList []Violation

// Add appends a violation.
func (l *ViolationList) Add(v Violation) { *l = append(*l, v) }

// Addf appends a violation with a formatted message.
func (l *ViolationList) Addf(code, field, format string, args ...any) {
	l.Add(Violation{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Empty reports whether nothing was recorded.
func (l ViolationList) Empty() bool { return len(l) == 0 }

func (l ViolationList) join(title string) string {
	var b strings.Builder
	b.WriteString(title)
	for _, v := range l {
		b.WriteString("\n- ")
		b.WriteString(v.Error())
	}
	return b.String()
}

// CoercionError aggregates every field that failed type conversion.
type CoercionError struct {
	Violations ViolationList
}

func (e *CoercionError) Error() string {
	return e.Violations.join("Type coercion failed:")
}

// ValidationError aggregates every constraint violation of a dataset.
type ValidationError struct {
	Violations ViolationList
}

func (e *ValidationError) Error() string {
	return e.Violations.join("Schema validation failed:")
}

// CoercionErr returns a *CoercionError for a non-empty list, else nil.
func (l ViolationList) CoercionErr() error {
	if l.Empty() {
		return nil
	}
	return &CoercionError{Violations: l}
}

// ValidationErr returns a *ValidationError for a non-empty list, else nil.
func (l ViolationList) ValidationErr() error {
	if l.Empty() {
		return nil
	}
	return &ValidationError{Violations: l}
}

// AsViolations extracts the violations carried by a coercion or validation
// error anywhere in err's chain.
func AsViolations(err error) (ViolationList, bool) {
	var ce *CoercionError
	if errors.As(err, &ce) {
		return ce.Violations, true
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations, true
	}
	return nil, false
}
