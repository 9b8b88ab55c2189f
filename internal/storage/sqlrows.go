package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"tabsql/internal/dataset"
)

// ScanRows drains rows into a dataset. Column kinds are inferred from the
// driver values. rows is closed.
func ScanRows(rows *sql.Rows) (*dataset.Dataset, error) {
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("result columns: %w", err)
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result row %d: %w", len(out), err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return dataset.FromRows(names, out)
}

// InsertRows loads ds through a prepared single-row INSERT inside one
// transaction per batch. It suits engines without a bulk-load API.
func InsertRows(ctx context.Context, conn *sql.Conn, insertSQL string, ds *dataset.Dataset, batchSize int) (int64, error) {
	return LoadBatches(ctx, ds, batchSize, func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin tx: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		var inserted int64
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, SQLArgs(row)...); err != nil {
				_ = tx.Rollback()
				return inserted, fmt.Errorf("insert: %w", err)
			}
			inserted++
		}
		if err := tx.Commit(); err != nil {
			return inserted, fmt.Errorf("commit: %w", err)
		}
		return inserted, nil
	})
}

// SQLArgs converts dataset values to database/sql arguments. Unsigned
// values that fit int64 are passed as int64; larger ones as decimal text.
func SQLArgs(row []any) []any {
	for i, v := range row {
		if u, ok := v.(uint64); ok {
			if u <= math.MaxInt64 {
				row[i] = int64(u)
			} else {
				row[i] = dataset.FormatValue(u)
			}
		}
	}
	return row
}
