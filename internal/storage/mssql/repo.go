// Package mssql implements a Microsoft SQL Server engine session using the
// go-mssqldb bulk copy API. SQL Server temp tables carry a '#' prefix the
// compiled queries do not use, so bound datasets become regular tables that
// are dropped when the session closes; point the DSN at a scratch database.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"tabsql/internal/dataset"
	"tabsql/internal/ddl"
	"tabsql/internal/query"
	"tabsql/internal/storage"
)

// Types maps dataset kinds to SQL Server column types.
var Types = ddl.TypeMap{String: "NVARCHAR(MAX)", Integer: "BIGINT", Number: "FLOAT"}

// Config holds MSSQL session configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db    *sql.DB
	conn  *sql.Conn
	cfg   Config
	bound []string
}

var _ storage.Repository = (*Repository)(nil)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, BatchSize: cfg.Batch()})
	})
}

// NewRepository validates the DSN, connects and pins one connection.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	// Compiled queries quote identifiers with double quotes.
	if _, err := conn.ExecContext(ctx, "SET QUOTED_IDENTIFIER ON"); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("session setup: %w", err)
	}
	return &Repository{db: db, conn: conn, cfg: cfg}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() query.Dialect { return query.TSQL }

// Bind creates a table shaped like ds and bulk-copies its rows in.
func (r *Repository) Bind(ctx context.Context, name string, ds *dataset.Dataset) error {
	def := ddl.FromDataset(name, ds, Types)
	create, err := ddl.BuildCreateTableSQL(def, ddl.CreateOptions{})
	if err != nil {
		return fmt.Errorf("mssql: %w", err)
	}
	if _, err := r.conn.ExecContext(ctx, ddl.BuildDropTableSQL(name)); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	if _, err := r.conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	r.bound = append(r.bound, name)

	_, err = storage.LoadBatches(ctx, ds, r.cfg.BatchSize, r.copyFn(name))
	return err
}

// copyFn bulk-copies one batch into table inside its own transaction.
func (r *Repository) copyFn(table string) storage.CopyFn {
	return func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		tx, err := r.conn.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin tx: %w", err)
		}
		rollback := func() { _ = tx.Rollback() }

		stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(msIdent(table), mssql.BulkOptions{}, columns...))
		if err != nil {
			rollback()
			return 0, fmt.Errorf("prepare bulk: %w", err)
		}
		for i := range rows {
			if _, err := stmt.ExecContext(ctx, storage.SQLArgs(rows[i])...); err != nil {
				_ = stmt.Close()
				rollback()
				return 0, fmt.Errorf("bulk row %d: %w", i, err)
			}
		}
		res, err := stmt.ExecContext(ctx)
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			rollback()
			return 0, fmt.Errorf("bulk finalize: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			rollback()
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit: %w", err)
		}
		return n, nil
	}
}

// Query runs sqlText on the session connection.
func (r *Repository) Query(ctx context.Context, sqlText string) (*dataset.Dataset, error) {
	rows, err := r.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	return storage.ScanRows(rows)
}

// Close drops every bound table and releases the connection.
func (r *Repository) Close() {
	ctx := context.Background()
	for _, name := range r.bound {
		if _, err := r.conn.ExecContext(ctx, ddl.BuildDropTableSQL(name)); err != nil {
			log.Printf("mssql: drop %s: %v", name, err)
		}
	}
	_ = r.conn.Close()
	_ = r.db.Close()
}

// msIdent quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
