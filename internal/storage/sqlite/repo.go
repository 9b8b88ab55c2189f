// Package sqlite implements an embedded SQLite engine session using
// database/sql and the pure-Go modernc driver. Bound datasets become TEMP
// tables on a single pinned connection, so the default ":memory:" DSN gives
// every run a private database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tabsql/internal/dataset"
	"tabsql/internal/ddl"
	"tabsql/internal/query"
	"tabsql/internal/storage"
)

// DefaultDSN opens a private in-memory database.
const DefaultDSN = ":memory:"

// Types maps dataset kinds to SQLite column types.
var Types = ddl.TypeMap{String: "TEXT", Integer: "INTEGER", Number: "REAL"}

// Config holds SQLite session configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g. ":memory:" or
	// "file:scratch.db". Empty uses DefaultDSN.
	DSN       string
	BatchSize int
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db   *sql.DB
	conn *sql.Conn
	cfg  Config
}

var _ storage.Repository = (*Repository)(nil)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, BatchSize: cfg.Batch()})
	})
}

// NewRepository opens a SQLite session.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		cfg.DSN = DefaultDSN
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Each :memory: connection is its own database; keep exactly one.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, err := db.Conn(pingCtx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: connect: %w", err)
	}
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repository{db: db, conn: conn, cfg: cfg}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() query.Dialect { return query.ANSI }

// Bind creates a TEMP table shaped like ds and inserts its rows.
func (r *Repository) Bind(ctx context.Context, name string, ds *dataset.Dataset) error {
	def := ddl.FromDataset(name, ds, Types)
	create, err := ddl.BuildCreateTableSQL(def, ddl.CreateOptions{Temporary: "TEMP"})
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if _, err := r.conn.ExecContext(ctx, ddl.BuildDropTableSQL(name)); err != nil {
		return fmt.Errorf("sqlite: drop: %w", err)
	}
	if _, err := r.conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("sqlite: create: %w", err)
	}
	if ds.Len() == 0 {
		return nil
	}
	if _, err := storage.InsertRows(ctx, r.conn, ddl.BuildInsertSQL(def, ddl.Question), ds, r.cfg.BatchSize); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

// Query runs sqlText on the session connection.
func (r *Repository) Query(ctx context.Context, sqlText string) (*dataset.Dataset, error) {
	rows, err := r.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	return storage.ScanRows(rows)
}

// Close releases the connection; TEMP tables go with it.
func (r *Repository) Close() {
	_ = r.conn.Close()
	_ = r.db.Close()
}
