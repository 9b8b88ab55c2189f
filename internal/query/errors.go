package query

import "fmt"

// UnsupportedFunctionError reports a function name outside the whitelist,
// or a scalar function used where an aggregate is required.
type UnsupportedFunctionError struct {
	Name      string
	Aggregate bool // rejected at the aggregation layer
}

func (e *UnsupportedFunctionError) Error() string {
	if e.Aggregate {
		return fmt.Sprintf("unsupported aggregation: %s", e.Name)
	}
	return fmt.Sprintf("unsupported function: %s", e.Name)
}

// UnsupportedOperatorError reports an operator outside the whitelist.
type UnsupportedOperatorError struct {
	Op string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator: %s", e.Op)
}

// UndefinedReferenceError reports a named reference that is not in scope at
// the point it is compiled.
type UndefinedReferenceError struct {
	Name string
}

func (e *UndefinedReferenceError) Error() string {
	return fmt.Sprintf("undefined ref: %s", e.Name)
}

// SpecError reports a malformed process document. Path locates the
// offending element, e.g. "aggregations[1].alias".
type SpecError struct {
	Path    string
	Message string
}

func (e *SpecError) Error() string {
	if e.Path == "" {
		return "invalid process spec: " + e.Message
	}
	return fmt.Sprintf("invalid process spec: %s: %s", e.Path, e.Message)
}

func specErrorf(path, format string, args ...any) *SpecError {
	return &SpecError{Path: path, Message: fmt.Sprintf(format, args...)}
}
