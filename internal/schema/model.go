// Package schema models the field-list schema documents that govern how a
// tabular dataset is coerced and validated.
//
// A schema document looks like:
//
//	{
//	  "name": "contracts", "version": "1.0.0",
//	  "format": {"filetype": "csv", "encoding": "utf-8", "delimiter": ",", "header": true},
//	  "primaryKey": ["policy_no"],
//	  "fields": [
//	    {"name": "agent_code", "type": "string", "required": true, "logicalType": "zeroPad7"},
//	    {"name": "premium", "type": "integer", "pandasType": "Int64", "nullable": false, "min": 0}
//	  ]
//	}
//
// Schemas are parsed once at pipeline start and never mutated afterwards.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field types.
const (
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeString  = "string"
)

// Logical types understood by the coercion engine.
const (
	LogicalZeroPad7   = "zeroPad7"
	LogicalYearMonth  = "yearMonth"
	LogicalBooleanInt = "booleanInt"
)

// ZeroPadWidth is the target width of the zeroPad7 logical type.
const ZeroPadWidth = 7

// Schema is the parsed representation of a schema document.
type Schema struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Format     Format   `json:"format"`
	PrimaryKey []string `json:"primaryKey"`
	Fields     []Field  `json:"fields"`
}

// Format describes the physical CSV layout.
type Format struct {
	FileType  string `json:"filetype"`
	Encoding  string `json:"encoding"`
	Delimiter string `json:"delimiter"`
	Header    *bool  `json:"header"`
}

// Field is a single column definition.
type Field struct {
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	PandasType  string     `json:"pandasType,omitempty"`
	LogicalType string     `json:"logicalType,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Nullable    *bool      `json:"nullable,omitempty"`
	Pattern     string     `json:"pattern,omitempty"`
	Enum        EnumValues `json:"enum,omitempty"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
}

// IsNullable reports whether nulls are allowed (default true).
func (f Field) IsNullable() bool {
	return f.Nullable == nil || *f.Nullable
}

// HasEnum reports whether the field declares a closed value set.
func (f Field) HasEnum() bool { return f.Enum != nil }

// Width resolves the pandasType width tag of an integer field.
// ok is false when no tag is set or the tag is not a recognised
// nullable-integer name.
func (f Field) Width() (bits int, unsigned bool, ok bool) {
	return ParseWidth(f.PandasType)
}

// ParseWidth maps nullable-integer tags (Int8..Int64, UInt8..UInt64,
// case-insensitive) to a bit width and signedness.
func ParseWidth(tag string) (bits int, unsigned bool, ok bool) {
	s := strings.ToLower(strings.TrimSpace(tag))
	if strings.HasPrefix(s, "uint") {
		unsigned = true
		s = strings.TrimPrefix(s, "u")
	}
	switch s {
	case "int8":
		return 8, unsigned, true
	case "int16":
		return 16, unsigned, true
	case "int32":
		return 32, unsigned, true
	case "int64":
		return 64, unsigned, true
	default:
		return 0, false, false
	}
}

// Comma returns the delimiter rune (default ',').
func (f Format) Comma() rune {
	if f.Delimiter == "" {
		return ','
	}
	if f.Delimiter == `\t` {
		return '\t'
	}
	return []rune(f.Delimiter)[0]
}

// HasHeader reports whether the first CSV line holds column names (default true).
func (f Format) HasHeader() bool {
	return f.Header == nil || *f.Header
}

// EncodingName returns the declared encoding (default "utf-8").
func (f Format) EncodingName() string {
	if strings.TrimSpace(f.Encoding) == "" {
		return "utf-8"
	}
	return f.Encoding
}

// Names returns field names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Required returns the names of required fields in declaration order.
func (s *Schema) Required() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// EnumValues is the closed value set of a field. JSON strings and numbers
// are both accepted and kept in their textual form.
type EnumValues []string

// UnmarshalJSON accepts an array of strings, numbers or booleans.
func (e *EnumValues) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("enum must be an array: %w", err)
	}
	out := make(EnumValues, 0, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err == nil {
			out = append(out, n.String())
			continue
		}
		var v bool
		if err := json.Unmarshal(r, &v); err == nil {
			out = append(out, fmt.Sprint(v))
			continue
		}
		return fmt.Errorf("enum[%d]: unsupported value %s", i, string(r))
	}
	*e = out
	return nil
}
