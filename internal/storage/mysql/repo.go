// Package mysql implements a MySQL engine session using go-sql-driver/mysql.
// The session runs with ANSI_QUOTES and NO_BACKSLASH_ESCAPES so the compiled
// ANSI SQL (double-quoted identifiers, doubled single quotes) parses as is.
// Bound datasets become TEMPORARY tables on one pinned connection.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"tabsql/internal/dataset"
	"tabsql/internal/ddl"
	"tabsql/internal/query"
	"tabsql/internal/storage"
)

// Types maps dataset kinds to MySQL column types.
var Types = ddl.TypeMap{
	String:     "LONGTEXT",
	Integer:    "BIGINT",
	Unsigned64: "BIGINT UNSIGNED",
	Number:     "DOUBLE",
}

// sessionSQLMode is appended to the server's sql_mode.
const sessionSQLMode = "CONCAT(@@sql_mode, ',ANSI_QUOTES,NO_BACKSLASH_ESCAPES')"

// Config holds MySQL session configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db   *sql.DB
	conn *sql.Conn
	cfg  Config
}

var _ storage.Repository = (*Repository)(nil)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, BatchSize: cfg.Batch()})
	})
}

// connectorConfig parses dsn and applies the session settings.
func connectorConfig(dsn string) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	mc.Params["sql_mode"] = sessionSQLMode
	return mc, nil
}

// NewRepository connects and pins one connection for the session.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	mc, err := connectorConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &Repository{db: db, conn: conn, cfg: cfg}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() query.Dialect { return query.ANSI }

// Bind creates a TEMPORARY table shaped like ds and inserts its rows.
func (r *Repository) Bind(ctx context.Context, name string, ds *dataset.Dataset) error {
	def := ddl.FromDataset(name, ds, Types)
	create, err := ddl.BuildCreateTableSQL(def, ddl.CreateOptions{Temporary: "TEMPORARY"})
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	if _, err := r.conn.ExecContext(ctx, "DROP TEMPORARY TABLE IF EXISTS "+ddl.QuoteIdent(name)); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	if _, err := r.conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if ds.Len() == 0 {
		return nil
	}
	_, err = storage.InsertRows(ctx, r.conn, ddl.BuildInsertSQL(def, ddl.Question), ds, r.cfg.BatchSize)
	return err
}

// Query runs sqlText on the session connection.
func (r *Repository) Query(ctx context.Context, sqlText string) (*dataset.Dataset, error) {
	rows, err := r.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	return storage.ScanRows(rows)
}

// Close releases the connection; TEMPORARY tables go with it.
func (r *Repository) Close() {
	_ = r.conn.Close()
	_ = r.db.Close()
}
