package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tabsql/internal/query"
	"tabsql/internal/storage"
)

func TestConnectorConfig_SetsSessionMode(t *testing.T) {
	t.Parallel()

	mc, err := connectorConfig("user:pw@tcp(127.0.0.1:3306)/scratch?charset=utf8mb4")
	if err != nil {
		t.Fatalf("connectorConfig: %v", err)
	}
	if mc.DBName != "scratch" || mc.Addr != "127.0.0.1:3306" {
		t.Fatalf("parsed config = %+v", mc)
	}
	if mc.Params["sql_mode"] != sessionSQLMode {
		t.Fatalf("Params = %v", mc.Params)
	}
	// The driver keeps charset out of Params; it must survive a round trip.
	if dsn := mc.FormatDSN(); !strings.Contains(dsn, "charset=utf8mb4") {
		t.Fatalf("FormatDSN() = %q, want charset=utf8mb4", dsn)
	}

	if _, err := connectorConfig("not a dsn"); err == nil {
		t.Fatalf("invalid DSN: error = nil")
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
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u@/db"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != "u@/db" || got.BatchSize != storage.DefaultBatchSize {
		t.Fatalf("hook cfg = %+v", got)
	}
	if repo.Dialect() != query.ANSI {
		t.Fatalf("Dialect() = %q", repo.Dialect())
	}

	newRepository = func(ctx context.Context, cfg Config) (*Repository, error) {
		return nil, errors.New("access denied")
	}
	if _, err := storage.New(context.Background(), storage.Config{Kind: "mysql"}); err == nil {
		t.Fatalf("open failure: error = nil")
	}
}
