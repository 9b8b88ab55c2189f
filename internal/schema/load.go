package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tabsql/internal/document"
)

const docKind = "schema"

// Load reads and checks the schema document at path.
func Load(path string) (*Schema, error) {
	b, err := document.ReadFile(docKind, path)
	if err != nil {
		return nil, err
	}
	return parse(path, b)
}

// Decode reads a schema document from r.
func Decode(r io.Reader) (*Schema, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return parse("", b)
}

func parse(path string, b []byte) (*Schema, error) {
	// The fields section is checked on the generic shape first so a missing
	// or mistyped array reports as such rather than as a decode error.
	var probe map[string]json.RawMessage
	if err := document.DecodeObject(docKind, path, b, &probe); err != nil {
		return nil, err
	}
	raw, ok := probe["fields"]
	if !ok || !isJSONArray(raw) {
		return nil, document.Structuralf(docKind, path, "schema must contain a 'fields' array")
	}

	var s Schema
	if err := document.DecodeObject(docKind, path, b, &s); err != nil {
		return nil, err
	}
	if err := s.check(); err != nil {
		return nil, &document.StructuralError{Kind: docKind, Path: path, Message: err.Error()}
	}
	return &s, nil
}

func isJSONArray(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "[")
}

// check enforces the document invariants that do not depend on data.
func (s *Schema) check() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("fields[%d]: name must not be empty", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("fields[%d]: duplicate field name %q", i, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case TypeInteger, TypeNumber, TypeString:
		default:
			return fmt.Errorf("field %q: unsupported type %q (want integer, number or string)", f.Name, f.Type)
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("field %q: min %v greater than max %v", f.Name, *f.Min, *f.Max)
		}
	}
	for _, k := range s.PrimaryKey {
		if _, ok := seen[k]; !ok {
			return fmt.Errorf("primaryKey column %q is not a declared field", k)
		}
	}
	return nil
}
