package postgres

import (
	"context"
	"errors"
	"math/big"
	"os"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"tabsql/internal/dataset"
	"tabsql/internal/storage"
)

func TestResultValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"passthrough", int64(3), int64(3)},
		{"integral numeric", pgtype.Numeric{Int: big.NewInt(30), Valid: true}, int64(30)},
		{"scaled numeric", pgtype.Numeric{Int: big.NewInt(25), Exp: -1, Valid: true}, 2.5},
		{"null numeric", pgtype.Numeric{}, nil},
		{"nan", pgtype.Numeric{NaN: true, Valid: true}, nil},
	}
	for _, tt := range tests {
		if got := resultValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s: resultValue(%#v) = %#v, want %#v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestCopyValues_Unsigned(t *testing.T) {
	t.Parallel()

	row := []any{"a", uint64(18446744073709551615), nil}
	copyValues(row)
	n, ok := row[1].(pgtype.Numeric)
	if !ok || !n.Valid || n.Int.String() != "18446744073709551615" {
		t.Fatalf("row[1] = %#v", row[1])
	}
	if row[0] != "a" || row[2] != nil {
		t.Fatalf("row = %#v", row)
	}
}

func TestRegistration_WrapsOpenErrors(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	boom := errors.New("connection refused")
	var got Config
	newRepository = func(ctx context.Context, cfg Config) (*Repository, error) {
		got = cfg
		return nil, boom
	}

	_, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x"})
	var ee *storage.EngineError
	if !errors.As(err, &ee) || ee.Op != "open" || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want EngineError wrapping boom", err)
	}
	if got.DSN != "postgres://x" || got.BatchSize != storage.DefaultBatchSize {
		t.Fatalf("hook cfg = %+v", got)
	}
}

// TestIntegration_Execute runs against a real server when
// TABSQL_TEST_POSTGRES_DSN is set.
func TestIntegration_Execute(t *testing.T) {
	dsn := os.Getenv("TABSQL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TABSQL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	r, err := NewRepository(ctx, Config{DSN: dsn, BatchSize: 2})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer r.Close()

	ds, err := dataset.FromRows([]string{"seg", "qty"}, [][]any{
		{"A", int64(1)}, {"A", int64(2)}, {"B", nil},
	})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	out, err := storage.Execute(ctx, r,
		`SELECT "seg", SUM("qty") AS "total" FROM "sales" GROUP BY "seg" ORDER BY "seg"`,
		map[string]*dataset.Dataset{"sales": ds})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.Rows(); !reflect.DeepEqual(got, [][]any{{"A", int64(3)}, {"B", nil}}) {
		t.Fatalf("Rows() = %#v", got)
	}
}
