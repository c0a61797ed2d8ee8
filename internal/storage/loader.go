// This file implements the generic batched append used for every destination
// table: rows are cut into batches and each batch is handed to the backend's
// bulk insert (CopyFn).
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to 'columns' order) and return the number of
// rows reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// BatchStats summarizes an AppendBatches call.
type BatchStats struct {
	Rows    int64
	Batches int64
	Elapsed time.Duration
}

// AppendBatches slices rows into batches of batchSize and calls copyFn for
// each of them in order. It stops at the first error or cancellation and
// returns what was written so far.
func AppendBatches(
	ctx context.Context,
	label string,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
	verbose bool,
) (BatchStats, error) {
	if batchSize <= 0 {
		return BatchStats{}, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return BatchStats{}, fmt.Errorf("copyFn must not be nil")
	}

	var (
		st          BatchStats
		start       = time.Now()
		lastFlushTS = start
	)
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			st.Elapsed = time.Since(start)
			return st, err
		}
		hi := lo + batchSize
		if hi > len(rows) {
			hi = len(rows)
		}

		n, err := copyFn(ctx, columns, rows[lo:hi])
		st.Rows += n
		if err != nil {
			log.Printf("loader: table=%s COPY failed batch=%d after=%d total=%d err=%v", label, st.Batches+1, n, st.Rows, err)
			st.Elapsed = time.Since(start)
			return st, err
		}
		st.Batches++

		if verbose {
			now := time.Now()
			sinceLast := now.Sub(lastFlushTS)
			rps := float64(0)
			if sinceLast > 0 {
				rps = float64(n) / sinceLast.Seconds()
			}
			log.Printf(
				"batch #%d: table=%s rps=%.0f inserted=%d total_inserted=%s elapsed=%s since_last=%s",
				st.Batches,
				label,
				rps,
				n,
				humanize.Comma(st.Rows),
				now.Sub(start).Truncate(time.Millisecond),
				sinceLast.Truncate(time.Millisecond),
			)
			lastFlushTS = now
		}
	}
	st.Elapsed = time.Since(start)
	return st, nil
}
