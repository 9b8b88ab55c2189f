// Package storage contains the engine-agnostic contract for executing
// compiled queries against bound datasets, a registry of engine backends and
// shared helpers for database/sql based engines.
package storage

import (
	"context"
	"fmt"

	"tabsql/internal/dataset"
	"tabsql/internal/query"
)

// Repository is one engine session. Tables bound with Bind are visible to
// Query for the lifetime of the session and are discarded by Close.
type Repository interface {
	// Dialect is the SQL flavour the engine expects.
	Dialect() query.Dialect
	// Bind registers ds as a table called name.
	Bind(ctx context.Context, name string, ds *dataset.Dataset) error
	// Query runs sqlText and returns its result set.
	Query(ctx context.Context, sqlText string) (*dataset.Dataset, error)
	Close()
}

// Config selects and configures an engine backend.
type Config struct {
	// Kind names a registered backend ("sqlite", "postgres", "mssql", "mysql").
	Kind string
	// DSN is passed to the backend's driver.
	DSN string
	// BatchSize bounds the rows sent per bulk-load round trip. Zero uses
	// DefaultBatchSize.
	BatchSize int
}

// DefaultBatchSize is used when Config.BatchSize is zero.
const DefaultBatchSize = 5000

// Batch returns the effective batch size.
func (c Config) Batch() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// EngineError reports a failure inside the external SQL engine.
type EngineError struct {
	Op    string // open, bind or query
	Table string // set for bind
	Err   error
}

func (e *EngineError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("engine %s %q: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
