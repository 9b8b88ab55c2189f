package builtin

import (
	"errors"
	"math"
	"strings"
	"testing"

	"tabsql/internal/schema"
)

const contractSchema = `{
  "primaryKey": ["policy_no"],
  "fields": [
    {"name": "policy_no", "type": "string", "required": true, "pattern": "P[0-9]+"},
    {"name": "channel", "type": "string", "enum": ["web", "agent"]},
    {"name": "premium", "type": "integer", "pandasType": "Int64", "nullable": false, "min": 0, "max": 1000},
    {"name": "rate", "type": "number", "min": 0.5}
  ]
}`

func TestValidate_Accepts(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, contractSchema)
	typed, err := Coerce{Schema: s}.Apply(raw(t, []string{"policy_no", "channel", "premium", "rate"},
		[]string{"P1", "web", "10", "0.5"},
		[]string{"P2x", "", "1000", ""},
	))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	out, err := Validate{Schema: s}.Apply(typed)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out != typed {
		t.Fatalf("Validate must return the same dataset")
	}
}

func TestValidate_ReportsEverything(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, contractSchema)
	typed, err := Coerce{Schema: s}.Apply(raw(t, []string{"policy_no", "channel", "premium", "rate"},
		[]string{"P1", "web", "10", "0.5"},
		[]string{"X9", "fax", "", "0.1"},
		[]string{"P1", "agent", "-5", "2"},
		[]string{"", "web", "2000", ""},
	))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	_, err = Validate{Schema: s}.Apply(typed)
	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *schema.ValidationError", err)
	}

	want := []string{
		"Schema validation failed:",
		`- [pattern] policy_no failed pattern P[0-9]+: rows [1 3], values ["X9" null]`,
		`- [enum] channel not in ["web" "agent"]: rows [1], values ["fax"]`,
		"- [null] premium has nulls at rows [1] (showing up to 5)",
		"- [range] premium < 0: rows [2], values [-5]",
		"- [range] premium > 1000: rows [3], values [2000]",
		"- [range] rate < 0.5: rows [1], values [0.1]",
		`- [primaryKey] duplicates on [policy_no]: rows [0 2], keys [{policy_no: "P1"}, {policy_no: "P1"}]`,
	}
	if got := err.Error(); got != strings.Join(want, "\n") {
		t.Fatalf("Error() =\n%s\nwant\n%s", got, strings.Join(want, "\n"))
	}

	codes := map[string]int{}
	for _, v := range ve.Violations {
		codes[v.Code]++
	}
	if codes[schema.CodeRange] != 3 || codes[schema.CodePrimaryKey] != 1 {
		t.Fatalf("violation codes = %v", codes)
	}
}

func TestValidate_RequiredColumnSkipsFieldChecks(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [
		{"name": "id", "type": "string", "required": true, "nullable": false, "pattern": "x"},
		{"name": "note", "type": "string", "nullable": false}
	]}`)
	_, err := Validate{Schema: s}.Apply(raw(t, []string{"note"}, []string{""}))
	want := "Schema validation failed:\n" +
		"- [schema] required column missing: id\n" +
		"- [null] note has nulls at rows [0] (showing up to 5)"
	if err == nil || err.Error() != want {
		t.Fatalf("error = %v, want %q", err, want)
	}
}

func TestValidate_PreviewCaps(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [{"name": "code", "type": "string", "nullable": false, "pattern": "[A-Z]"}]}`)
	rows := make([][]string, 8)
	for i := range rows {
		rows[i] = []string{""}
	}
	_, err := Validate{Schema: s}.Apply(raw(t, []string{"code"}, rows...))
	v, ok := schema.AsViolations(err)
	if !ok || len(v) != 2 {
		t.Fatalf("violations = %+v", v)
	}
	for _, x := range v {
		if len(x.Rows) != 5 {
			t.Fatalf("%s rows = %v, want 5 entries", x.Code, x.Rows)
		}
	}
}

func TestValidate_InvalidPattern(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [{"name": "code", "type": "string", "pattern": "("}]}`)
	_, err := Validate{Schema: s}.Apply(raw(t, []string{"code"}, []string{"a"}))
	if err == nil || !strings.Contains(err.Error(), "[pattern] code has invalid pattern (") {
		t.Fatalf("error = %v, want invalid pattern violation", err)
	}
}

func TestValidate_PatternIsStartAnchored(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [{"name": "ym", "type": "string", "pattern": "[0-9]{6}"}]}`)
	ds := raw(t, []string{"ym"}, []string{"202401-extra"}, []string{"x202401"})
	v := Validate{Schema: s}.Check(ds)
	if len(v) != 1 || len(v[0].Rows) != 1 || v[0].Rows[0] != 1 {
		t.Fatalf("violations = %+v, want only row 1", v)
	}
}

func TestValidate_NumericEnum(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [
		{"name": "grade", "type": "number", "enum": [1, 2]},
		{"name": "code", "type": "integer", "pandasType": "Int64", "enum": ["01", "2.0"]},
		{"name": "flag", "type": "integer", "pandasType": "UInt8", "enum": [1]}
	]}`)
	typed, err := Coerce{Schema: s}.Apply(raw(t, []string{"grade", "code", "flag"},
		[]string{"1.0", "1", "1"},
		[]string{"2", "2", ""},
		[]string{"3.0", "3", "0"},
	))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	v := Validate{Schema: s}.Check(typed)
	if len(v) != 3 {
		t.Fatalf("violations = %+v, want one per field", v)
	}
	for _, x := range v {
		if x.Code != schema.CodeEnum || len(x.Rows) != 1 || x.Rows[0] != 2 {
			t.Fatalf("%s violation = %+v, want enum at row 2", x.Field, x)
		}
	}
}

func TestNumberSet(t *testing.T) {
	t.Parallel()

	s := newNumberSet([]string{"9007199254740993", "1e3", "-4", "0.5", "web"})
	tests := []struct {
		in   any
		want bool
	}{
		{int64(9007199254740993), true},
		{int64(9007199254740992), false},
		{uint64(9007199254740993), true},
		{int64(1000), true},
		{uint64(1000), true},
		{float64(1000), true},
		{int64(-4), true},
		{uint64(4), false},
		{0.5, true},
		{int64(0), false},
		{"web", false},
	}
	for _, tt := range tests {
		if got := s.has(tt.in); got != tt.want {
			t.Errorf("has(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidate_RangeBeyondFloatPrecision(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"fields": [
		{"name": "id", "type": "integer", "pandasType": "Int64", "max": 9007199254740992},
		{"name": "uid", "type": "integer", "pandasType": "UInt64", "min": 9007199254740992}
	]}`)
	typed, err := Coerce{Schema: s}.Apply(raw(t, []string{"id", "uid"},
		[]string{"9007199254740992", "9007199254740992"},
		[]string{"9007199254740993", "9007199254740991"},
	))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	v := Validate{Schema: s}.Check(typed)
	if len(v) != 2 {
		t.Fatalf("violations = %+v, want two", v)
	}
	for _, x := range v {
		if x.Code != schema.CodeRange || len(x.Rows) != 1 || x.Rows[0] != 1 {
			t.Fatalf("%s violation = %+v, want range at row 1", x.Field, x)
		}
	}
}

func TestCompareBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		x     any
		bound float64
		want  int
	}{
		{int64(5), 5, 0},
		{int64(5), 5.5, -1},
		{int64(6), 5.5, 1},
		{int64(-6), -5.5, -1},
		{int64(-5), -5.5, 1},
		{int64(math.MaxInt64), 1e19, -1},
		{int64(math.MinInt64), -1e19, 1},
		{uint64(0), -1, 1},
		{uint64(math.MaxUint64), 1e20, -1},
		{uint64(math.MaxUint64), 1e19, 1},
		{2.5, 2.5, 0},
		{2.4, 2.5, -1},
	}
	for _, tt := range tests {
		got, ok := compareBound(tt.x, tt.bound)
		if !ok || got != tt.want {
			t.Errorf("compareBound(%#v, %v) = %d, %v; want %d", tt.x, tt.bound, got, ok, tt.want)
		}
	}
	if _, ok := compareBound(true, 1); ok {
		t.Errorf("compareBound(bool) ok = true, want false")
	}
}
