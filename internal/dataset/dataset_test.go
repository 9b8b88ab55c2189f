package dataset

import (
	"reflect"
	"testing"
)

func TestFromRows_InfersKinds(t *testing.T) {
	t.Parallel()

	d, err := FromRows(
		[]string{"seg", "n", "ratio", "mixed"},
		[][]any{
			{"a", int64(1), float64(0.5), "x"},
			{[]byte("b"), int32(2), int64(3), int64(7)},
			{nil, nil, nil, nil},
		},
	)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}

	want := map[string]Kind{"seg": String, "n": Integer, "ratio": Number, "mixed": String}
	for name, k := range want {
		c, ok := d.Column(name)
		if !ok {
			t.Fatalf("Column(%q) missing", name)
		}
		if c.Kind != k {
			t.Fatalf("%s.Kind = %v, want %v", name, c.Kind, k)
		}
	}

	ratio, _ := d.Column("ratio")
	if got := ratio.Values[1]; got != float64(3) {
		t.Fatalf("ratio[1] = %#v, want float64(3)", got)
	}
	mixed, _ := d.Column("mixed")
	if got := mixed.Values[1]; got != "7" {
		t.Fatalf("mixed[1] = %#v, want \"7\"", got)
	}
	if got := d.Row(1); !reflect.DeepEqual(got, []any{"b", int64(2), float64(3), "7"}) {
		t.Fatalf("Row(1) = %#v", got)
	}
}

func TestFromRows_RaggedRow(t *testing.T) {
	t.Parallel()

	if _, err := FromRows([]string{"a", "b"}, [][]any{{1}}); err == nil {
		t.Fatalf("FromRows with short row: error = nil, want error")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	t.Parallel()

	d := New("a")
	if err := d.AppendRow([]any{"x"}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	cp := d.Clone()
	c, _ := cp.Column("a")
	c.Values[0] = "changed"
	c.Kind = Integer

	orig, _ := d.Column("a")
	if orig.Values[0] != "x" || orig.Kind != String {
		t.Fatalf("original mutated through clone: %+v", orig)
	}
}

func TestSetColumn(t *testing.T) {
	t.Parallel()

	d := New()
	if err := d.SetColumn(&Column{Name: "a", Values: []any{"1", "2"}}); err != nil {
		t.Fatalf("SetColumn(first): %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	if err := d.SetColumn(&Column{Name: "b", Values: []any{"1"}}); err == nil {
		t.Fatalf("SetColumn with wrong length: error = nil")
	}
	if err := d.SetColumn(&Column{Name: "a", Kind: Integer, Values: []any{int64(1), int64(2)}}); err != nil {
		t.Fatalf("SetColumn(replace): %v", err)
	}
	if got := d.Names(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("Names() = %v", got)
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{int64(-12), "-12"},
		{uint64(7), "7"},
		{float64(3), "3.0"},
		{float64(2.5), "2.5"},
		{float64(1e20), "100000000000000000000"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Fatalf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
