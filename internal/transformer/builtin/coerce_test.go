package builtin

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"tabsql/internal/dataset"
	"tabsql/internal/schema"
)

func TestCoerce_ZeroPad7(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [{"name": "agent", "type": "string", "logicalType": "zeroPad7"}]}`)
	inputs := []string{"  12 ", "1", "123456", "1234567", "12345678", "ab c", "   ", "日本"}
	rows := make([][]string, len(inputs))
	for i, in := range inputs {
		rows[i] = []string{in}
	}

	out, err := Coerce{Schema: s}.Apply(raw(t, []string{"agent"}, rows...))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	col := column(t, out, "agent")
	for i, in := range inputs {
		got := col.Values[i]
		trimmed := strings.TrimSpace(in)
		s, ok := got.(string)
		if !ok {
			t.Fatalf("row %d: got %#v, want a string", i, got)
		}
		want := utf8.RuneCountInString(trimmed)
		if want < 7 {
			want = 7
		}
		if n := utf8.RuneCountInString(s); n != want {
			t.Fatalf("pad(%q) = %q: length %d, want %d", in, s, n, want)
		}
		if !strings.HasSuffix(s, trimmed) || strings.Trim(strings.TrimSuffix(s, trimmed), "0") != "" {
			t.Fatalf("pad(%q) = %q: want leading zeros then %q", in, s, trimmed)
		}
	}
}

func TestCoerce_RequiredMissing(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [
		{"name": "id", "type": "string"},
		{"name": "premium", "type": "integer", "pandasType": "Int64", "required": true}
	]}`)
	_, err := Coerce{Schema: s}.Apply(raw(t, []string{"id"}, []string{"a"}))
	if err == nil {
		t.Fatalf("Apply error = nil, want missing required column")
	}
	var ce *schema.CoercionError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *schema.CoercionError", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "premium") || !strings.Contains(msg, "required") {
		t.Fatalf("error = %q, want field name and 'required'", msg)
	}
}

func TestCoerce_AggregatesFieldErrors(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [
		{"name": "n", "type": "integer"},
		{"name": "small", "type": "integer", "pandasType": "Int8"},
		{"name": "x", "type": "number"},
		{"name": "flag", "type": "string", "logicalType": "percent"}
	]}`)
	in := raw(t, []string{"n", "small", "x", "flag"},
		[]string{"1", "127", "1.5", "y"},
		[]string{"2", "200", "abc", "n"},
	)
	_, err := Coerce{Schema: s}.Apply(in)
	if err == nil {
		t.Fatalf("Apply error = nil, want aggregated coercion error")
	}
	want := []string{
		"Type coercion failed:",
		"- [coerce] n: pandasType required for integer field 'n'",
		`- [coerce] small: cannot convert 1 value(s) to Int8: rows [1], values ["200"]`,
		`- [coerce] x: cannot convert 1 value(s) to number: rows [1], values ["abc"]`,
		`- [coerce] flag: unsupported logicalType "percent"`,
	}
	if got := err.Error(); got != strings.Join(want, "\n") {
		t.Fatalf("Error() =\n%s\nwant\n%s", got, strings.Join(want, "\n"))
	}
	v, ok := schema.AsViolations(err)
	if !ok || len(v) != 4 || v[1].Field != "small" {
		t.Fatalf("AsViolations = %+v", v)
	}
}

func TestCoerce_Types(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [
		{"name": "i16", "type": "integer", "pandasType": "Int16"},
		{"name": "u8", "type": "integer", "pandasType": "UInt8"},
		{"name": "amt", "type": "number"},
		{"name": "ch", "type": "string", "enum": ["A", "B"]},
		{"name": "ym", "type": "string", "logicalType": "yearMonth"},
		{"name": "b", "type": "integer", "pandasType": "Int8", "logicalType": "booleanInt"}
	]}`)
	in := raw(t, []string{"i16", "u8", "amt", "ch", "ym", "b", "extra"},
		[]string{" 12 ", "255", "1.25", " C ", "202401", "1", " keep "},
		[]string{"-3.0", "", "7", "A", "", "0", ""},
	)
	out, err := Coerce{Schema: s}.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	i16 := column(t, out, "i16")
	if i16.Kind != dataset.Integer || i16.Width != 16 || i16.Unsigned {
		t.Fatalf("i16 column = %+v", i16)
	}
	if !reflect.DeepEqual(i16.Values, []any{int64(12), int64(-3)}) {
		t.Fatalf("i16 values = %#v", i16.Values)
	}

	u8 := column(t, out, "u8")
	if !u8.Unsigned || !reflect.DeepEqual(u8.Values, []any{uint64(255), nil}) {
		t.Fatalf("u8 column = %+v", u8)
	}

	amt := column(t, out, "amt")
	if amt.Kind != dataset.Number || !reflect.DeepEqual(amt.Values, []any{1.25, float64(7)}) {
		t.Fatalf("amt column = %+v", amt)
	}

	ch := column(t, out, "ch")
	if !reflect.DeepEqual(ch.Categories, []string{"A", "B"}) {
		t.Fatalf("ch.Categories = %v", ch.Categories)
	}
	if ch.Values[0] != "C" {
		t.Fatalf("values outside the enum must survive coercion, got %#v", ch.Values[0])
	}

	if ym := column(t, out, "ym"); ym.Values[0] != "202401" || ym.Values[1] != nil {
		t.Fatalf("ym values = %#v", ym.Values)
	}
	if b := column(t, out, "b"); !reflect.DeepEqual(b.Values, []any{int64(1), int64(0)}) {
		t.Fatalf("b values = %#v", b.Values)
	}

	// Columns without a field are left alone.
	if extra := column(t, out, "extra"); extra.Values[0] != " keep " {
		t.Fatalf("extra = %#v, want untouched", extra.Values[0])
	}
	// The raw input is not modified.
	if c := column(t, in, "i16"); c.Values[0] != " 12 " || c.Kind != dataset.String {
		t.Fatalf("input mutated: %+v", c)
	}
}

func TestCoerce_IntegerBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		in   string
		want any
		ok   bool
	}{
		{"Int8", "-128", int64(-128), true},
		{"Int8", "-129", nil, false},
		{"Int32", "2147483647", int64(2147483647), true},
		{"Int32", "2147483648", nil, false},
		{"Int64", "9223372036854775807", int64(9223372036854775807), true},
		{"UInt8", "-1", nil, false},
		{"UInt64", "18446744073709551615", uint64(18446744073709551615), true},
		{"Int16", "1.5", nil, false},
		{"Int16", "1e3", int64(1000), true},
		{"Int16", "twelve", nil, false},
	}
	for _, tt := range tests {
		got, ok := toIntegerTag(t, tt.tag, tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Fatalf("%s(%q) = (%#v, %v), want (%#v, %v)", tt.tag, tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func toIntegerTag(t *testing.T, tag, in string) (any, bool) {
	t.Helper()
	bits, unsigned, ok := schema.ParseWidth(tag)
	if !ok {
		t.Fatalf("ParseWidth(%q) failed", tag)
	}
	return toInteger(in, bits, unsigned)
}

func TestCoerce_EngineValues(t *testing.T) {
	t.Parallel()

	// Engine results arrive typed; the output schema re-applies types.
	in, err := dataset.FromRows(
		[]string{"seg", "total", "avg"},
		[][]any{{int64(1), float64(30), int64(2)}, {int64(2), nil, int64(3)}},
	)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	s := mustSchema(t, `{"fields": [
		{"name": "seg", "type": "string", "logicalType": "zeroPad7"},
		{"name": "total", "type": "integer", "pandasType": "Int64"},
		{"name": "avg", "type": "number"}
	]}`)
	out, err := Coerce{Schema: s}.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := column(t, out, "seg").Values; !reflect.DeepEqual(got, []any{"0000001", "0000002"}) {
		t.Fatalf("seg = %#v", got)
	}
	if got := column(t, out, "total").Values; !reflect.DeepEqual(got, []any{int64(30), nil}) {
		t.Fatalf("total = %#v", got)
	}
	if got := column(t, out, "avg").Values; !reflect.DeepEqual(got, []any{float64(2), float64(3)}) {
		t.Fatalf("avg = %#v", got)
	}
}

func TestCoerce_BlankCells(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [
		{"name": "note", "type": "string", "nullable": false},
		{"name": "qty", "type": "integer", "pandasType": "Int32"},
		{"name": "amt", "type": "number"}
	]}`)
	in := raw(t, []string{"note", "qty", "amt"},
		[]string{"  ", " \t", " "},
		[]string{"", "", ""},
	)
	out, err := Coerce{Schema: s}.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if note := column(t, out, "note"); !reflect.DeepEqual(note.Values, []any{"", nil}) {
		t.Fatalf("note values = %#v, want blank text kept and empty cell null", note.Values)
	}
	for _, name := range []string{"qty", "amt"} {
		if c := column(t, out, name); !reflect.DeepEqual(c.Values, []any{nil, nil}) {
			t.Fatalf("%s values = %#v, want nulls", name, c.Values)
		}
	}

	// Only the truly empty cell breaks nullable=false.
	v := Validate{Schema: s}.Check(out)
	if len(v) != 1 || v[0].Code != schema.CodeNull || !reflect.DeepEqual(v[0].Rows, []int{1}) {
		t.Fatalf("violations = %+v, want a null violation at row 1 only", v)
	}
}
