package storage

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"tabsql/internal/dataset"
)

// Execute binds every dataset in tables under its map key, in name order,
// runs sqlText and returns the result. Failures are *EngineError.
func Execute(ctx context.Context, repo Repository, sqlText string, tables map[string]*dataset.Dataset) (*dataset.Dataset, error) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		start := time.Now()
		if err := repo.Bind(ctx, name, tables[name]); err != nil {
			return nil, asEngineError("bind", name, err)
		}
		log.Printf("engine: bound table=%s rows=%d elapsed=%s",
			name, tables[name].Len(), time.Since(start).Truncate(time.Millisecond))
	}

	start := time.Now()
	out, err := repo.Query(ctx, sqlText)
	if err != nil {
		return nil, asEngineError("query", "", err)
	}
	log.Printf("engine: query rows=%d elapsed=%s", out.Len(), time.Since(start).Truncate(time.Millisecond))
	return out, nil
}

func asEngineError(op, table string, err error) error {
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{Op: op, Table: table, Err: err}
}
