package mssql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tabsql/internal/query"
	"tabsql/internal/storage"
)

func TestMSIdent(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"sales":     "[sales]",
		"odd]name":  "[odd]]name]",
		"two words": "[two words]",
	}
	for in, want := range tests {
		if got := msIdent(in); got != want {
			t.Fatalf("msIdent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRepository_RejectsBadDSN(t *testing.T) {
	t.Parallel()

	_, err := NewRepository(context.Background(), Config{DSN: "sqlserver://host:notaport?database=x"})
	if err == nil || !strings.Contains(err.Error(), "mssql dsn") {
		t.Fatalf("err = %v, want dsn error", err)
	}
}

func TestRegistration_UsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	newRepository = func(ctx context.Context, cfg Config) (*Repository, error) {
		got = cfg
		return &Repository{}, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://sa@localhost", BatchSize: 50})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != "sqlserver://sa@localhost" || got.BatchSize != 50 {
		t.Fatalf("hook cfg = %+v", got)
	}
	if repo.Dialect() != query.TSQL {
		t.Fatalf("Dialect() = %q, want tsql", repo.Dialect())
	}

	newRepository = func(ctx context.Context, cfg Config) (*Repository, error) {
		return nil, errors.New("login failed")
	}
	_, err = storage.New(context.Background(), storage.Config{Kind: "mssql"})
	var ee *storage.EngineError
	if !errors.As(err, &ee) || ee.Op != "open" {
		t.Fatalf("err = %v, want *storage.EngineError", err)
	}
}
