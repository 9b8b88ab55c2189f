package ddl

import (
	"strconv"
	"strings"
	"testing"

	"tabsql/internal/dataset"
)

var sqliteTypes = TypeMap{String: "TEXT", Integer: "INTEGER", Number: "REAL"}

// TestBuildCreateTableSQL verifies rendered statements and the errors for
// invalid definitions.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		opt         CreateOptions
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty name returns error",
			def:         TableDef{Name: " ", Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table name must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{Name: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{Name: "t", Columns: []ColumnDef{{SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{Name: "t", Columns: []ColumnDef{{Name: "id", SQLType: "  "}}},
			errContains: "missing SQLType",
		},
		{
			name:    "regular table",
			def:     TableDef{Name: "t", Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			wantSQL: "CREATE TABLE \"t\" (\n  \"id\" INT\n)",
		},
		{
			name: "temporary table with awkward identifiers",
			def: TableDef{Name: `my "table"`, Columns: []ColumnDef{
				{Name: "id", SQLType: "BIGINT"},
				{Name: "amount total", SQLType: " DOUBLE PRECISION "},
			}},
			opt:     CreateOptions{Temporary: "TEMP"},
			wantSQL: "CREATE TEMP TABLE \"my \"\"table\"\"\" (\n  \"id\" BIGINT,\n  \"amount total\" DOUBLE PRECISION\n)",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotSQL, err := BuildCreateTableSQL(tt.def, tt.opt)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("BuildCreateTableSQL() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildCreateTableSQL() unexpected error = %v", err)
			}
			if gotSQL != tt.wantSQL {
				t.Fatalf("BuildCreateTableSQL() =\n%s\nwant:\n%s", gotSQL, tt.wantSQL)
			}
		})
	}
}

func TestFromDataset(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	for _, c := range []*dataset.Column{
		{Name: "code", Kind: dataset.String, Values: []any{"a"}},
		{Name: "n", Kind: dataset.Integer, Width: 32, Values: []any{int64(1)}},
		{Name: "big", Kind: dataset.Integer, Width: 64, Unsigned: true, Values: []any{uint64(1)}},
		{Name: "amt", Kind: dataset.Number, Values: []any{1.5}},
	} {
		if err := ds.SetColumn(c); err != nil {
			t.Fatalf("SetColumn: %v", err)
		}
	}

	pg := TypeMap{String: "TEXT", Integer: "BIGINT", Unsigned64: "NUMERIC(20,0)", Number: "DOUBLE PRECISION"}
	def := FromDataset("sales", ds, pg)
	want := []ColumnDef{
		{Name: "code", SQLType: "TEXT"},
		{Name: "n", SQLType: "BIGINT"},
		{Name: "big", SQLType: "NUMERIC(20,0)"},
		{Name: "amt", SQLType: "DOUBLE PRECISION"},
	}
	if def.Name != "sales" || len(def.Columns) != len(want) {
		t.Fatalf("FromDataset() = %+v", def)
	}
	for i := range want {
		if def.Columns[i] != want[i] {
			t.Fatalf("column %d = %+v, want %+v", i, def.Columns[i], want[i])
		}
	}

	if got := FromDataset("s", ds, sqliteTypes).Columns[2].SQLType; got != "INTEGER" {
		t.Fatalf("Unsigned64 fallback = %q, want INTEGER", got)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	def := TableDef{Name: "t", Columns: []ColumnDef{{Name: "a"}, {Name: "b"}}}
	if got, want := BuildInsertSQL(def, Question), `INSERT INTO "t" ("a", "b") VALUES (?, ?)`; got != want {
		t.Fatalf("BuildInsertSQL(?) = %q, want %q", got, want)
	}
	dollar := func(n int) string { return "$" + strconv.Itoa(n) }
	if got, want := BuildInsertSQL(def, dollar), `INSERT INTO "t" ("a", "b") VALUES ($1, $2)`; got != want {
		t.Fatalf("BuildInsertSQL($) = %q, want %q", got, want)
	}
	if got := BuildDropTableSQL(`x"y`); got != `DROP TABLE IF EXISTS "x""y"` {
		t.Fatalf("BuildDropTableSQL() = %q", got)
	}
}

var benchmarkSink string

// BenchmarkBuildCreateTableSQL_WideTable measures rendering for a wide
// staging table.
func BenchmarkBuildCreateTableSQL_WideTable(b *testing.B) {
	cols := make([]ColumnDef, 0, 64)
	for i := 0; i < 64; i++ {
		cols = append(cols, ColumnDef{Name: "col_" + strconv.Itoa(i), SQLType: "TEXT"})
	}
	def := TableDef{Name: "large_table", Columns: cols}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sql, err := BuildCreateTableSQL(def, CreateOptions{Temporary: "TEMP"})
		if err != nil {
			b.Fatalf("BuildCreateTableSQL() error = %v", err)
		}
		benchmarkSink = sql
	}
}
