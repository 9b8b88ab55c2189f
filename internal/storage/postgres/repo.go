// Package postgres implements a PostgreSQL engine session using pgx v5.
// Bound datasets are COPYed into TEMP tables on one connection acquired from
// the pool for the whole session.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabsql/internal/dataset"
	"tabsql/internal/ddl"
	"tabsql/internal/query"
	"tabsql/internal/storage"
)

// Types maps dataset kinds to Postgres column types.
var Types = ddl.TypeMap{
	String:     "TEXT",
	Integer:    "BIGINT",
	Unsigned64: "NUMERIC(20,0)",
	Number:     "DOUBLE PRECISION",
}

// Config holds Postgres session configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	BatchSize int
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	conn *pgxpool.Conn
	cfg  Config
}

var _ storage.Repository = (*Repository)(nil)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, BatchSize: cfg.Batch()})
	})
}

// NewRepository opens a pool and pins one connection for the session.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxpool acquire: %w", err)
	}
	return &Repository{pool: pool, conn: conn, cfg: cfg}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() query.Dialect { return query.ANSI }

// Bind creates a TEMP table shaped like ds and COPYs its rows in.
func (r *Repository) Bind(ctx context.Context, name string, ds *dataset.Dataset) error {
	def := ddl.FromDataset(name, ds, Types)
	create, err := ddl.BuildCreateTableSQL(def, ddl.CreateOptions{Temporary: "TEMP"})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if _, err := r.conn.Exec(ctx, ddl.BuildDropTableSQL(name)); err != nil {
		return fmt.Errorf("drop temp: %w", pgDetail(err))
	}
	if _, err := r.conn.Exec(ctx, create); err != nil {
		return fmt.Errorf("create temp: %w", pgDetail(err))
	}
	_, err = storage.LoadBatches(ctx, ds, r.cfg.BatchSize, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		for _, row := range rows {
			copyValues(row)
		}
		n, err := r.conn.CopyFrom(ctx, pgx.Identifier{name}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, fmt.Errorf("copy into temp: %w", pgDetail(err))
		}
		return n, nil
	})
	return err
}

// Query runs sqlText on the session connection.
func (r *Repository) Query(ctx context.Context, sqlText string) (*dataset.Dataset, error) {
	rows, err := r.conn.Query(ctx, sqlText)
	if err != nil {
		return nil, pgDetail(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read result row %d: %w", len(out), err)
		}
		for i, v := range vals {
			vals[i] = resultValue(v)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, pgDetail(err)
	}
	return dataset.FromRows(names, out)
}

// Close releases the session connection and closes the pool.
func (r *Repository) Close() {
	r.conn.Release()
	r.pool.Close()
}

// copyValues adapts dataset values for COPY. uint64 targets NUMERIC(20,0).
func copyValues(row []any) {
	for i, v := range row {
		if u, ok := v.(uint64); ok {
			row[i] = pgtype.Numeric{Int: new(big.Int).SetUint64(u), Valid: true}
		}
	}
}

// resultValue maps pgx result values onto dataset values. Aggregates over
// BIGINT come back as NUMERIC; integral ones become int64, the rest float64.
func resultValue(v any) any {
	n, ok := v.(pgtype.Numeric)
	if !ok {
		return v
	}
	if !n.Valid || n.NaN {
		return nil
	}
	if n.Exp >= 0 {
		if i, err := n.Int64Value(); err == nil && i.Valid {
			return i.Int64
		}
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}

// pgDetail surfaces server-side detail and SQLSTATE when available.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
	}
	return err
}
