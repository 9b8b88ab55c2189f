package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"tabsql/internal/dataset"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations
// insert rows (aligned to columns) and return the number of rows inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches slices ds into row-major batches of batchSize and calls copyFn
// for each. It returns the total reported by copyFn and the first error.
// Progress is logged on each successful flush.
func LoadBatches(ctx context.Context, ds *dataset.Dataset, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		columns     = ds.Names()
		total       int64
		batches     int64
		batch       = make([][]any, 0, min(batchSize, ds.Len()))
		start       = time.Now()
		lastFlushTS = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Printf("loader: copy failed after=%d total=%d err=%v", n, total, err)
			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		log.Printf("batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			batches, rps, n, total, now.Sub(start).Truncate(time.Millisecond))
		lastFlushTS = now
		return nil
	}

	for r := 0; r < ds.Len(); r++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch = append(batch, ds.Row(r))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
