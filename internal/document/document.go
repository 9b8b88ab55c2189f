// Package document reads the JSON documents that drive a run (schemas,
// process specs, table lists, pipeline configs) and classifies the ways they
// can be malformed.
//
// File-system failures are returned wrapped with %w so callers can still test
// them with errors.Is (fs.ErrNotExist, fs.ErrPermission). Anything wrong with
// the document itself (bad JSON, wrong root, missing sections) is a
// *StructuralError.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// StructuralError reports a document that was read but cannot be used:
// invalid JSON, a root that is not an object, or a missing/mistyped section.
type StructuralError struct {
	Kind    string // "schema", "process", "tables", "pipeline"
	Path    string // file path, or "" for in-memory documents
	Message string
	Err     error
}

func (e *StructuralError) Error() string {
	where := e.Kind
	if e.Path != "" {
		where = fmt.Sprintf("%s %s", e.Kind, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Structuralf builds a StructuralError with a formatted message.
func Structuralf(kind, path, format string, args ...any) *StructuralError {
	return &StructuralError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}

// ReadFile reads the document at path. Errors keep the underlying cause so
// errors.Is(err, fs.ErrNotExist) and fs.ErrPermission work for callers.
func ReadFile(kind, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%s file not found: %s: %w", kind, path, err)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("permission denied reading %s file: %s: %w", kind, path, err)
	default:
		return nil, fmt.Errorf("failed to read %s file %s: %w", kind, path, err)
	}
}

// ReadJSON reads path and decodes it into v (see DecodeObject).
func ReadJSON(kind, path string, v any) error {
	b, err := ReadFile(kind, path)
	if err != nil {
		return err
	}
	return DecodeObject(kind, path, b, v)
}

// DecodeObject decodes data into v. The root must be a JSON object. Numbers
// are kept as json.Number wherever v holds interface values so literal text
// survives untouched.
func DecodeObject(kind, path string, data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Structuralf(kind, path, "document is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return invalidJSON(kind, path, trimmed, err)
	}
	if _, ok := root.(map[string]any); !ok {
		return Structuralf(kind, path, "root must be a JSON object, got %s", jsonTypeName(root))
	}
	if _, err := dec.Token(); err != io.EOF {
		return Structuralf(kind, path, "unexpected data after the root object")
	}

	typed := json.NewDecoder(bytes.NewReader(trimmed))
	typed.UseNumber()
	if err := typed.Decode(v); err != nil {
		return invalidJSON(kind, path, trimmed, err)
	}
	return nil
}

func invalidJSON(kind, path string, data []byte, err error) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		line, col := lineCol(data, syn.Offset)
		return &StructuralError{
			Kind:    kind,
			Path:    path,
			Message: fmt.Sprintf("invalid JSON (line %d col %d)", line, col),
			Err:     err,
		}
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		field := typ.Field
		if field == "" {
			field = "<root>"
		}
		return &StructuralError{
			Kind:    kind,
			Path:    path,
			Message: fmt.Sprintf("%s must be %s, got JSON %s", field, typ.Type, typ.Value),
			Err:     err,
		}
	}
	return &StructuralError{Kind: kind, Path: path, Message: "invalid JSON", Err: err}
}

// lineCol converts a byte offset into a 1-based line and column.
func lineCol(data []byte, off int64) (int, int) {
	if off > int64(len(data)) {
		off = int64(len(data))
	}
	line, col := 1, 1
	for _, c := range data[:off] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
