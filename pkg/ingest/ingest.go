// Package ingest validates, parses, and loads bulk transaction exports into
// the store in bounded-size batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ecomware/tx-summary-db/pkg/humanfmt"
	"github.com/ecomware/tx-summary-db/pkg/logging"
	"github.com/ecomware/tx-summary-db/pkg/store"
)

// Options controls an ingestion run.
type Options struct {
	// ChunkSize is the maximum number of rows per insert batch.
	// Default: DefaultChunkSize.
	ChunkSize int
	// Replace truncates the store before loading. When false, rows
	// accumulate across runs and duplicates are skipped by id.
	Replace bool
}

// DefaultOptions returns the standard ingestion options: 100k-row batches
// with replace semantics.
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize, Replace: true}
}

const progressInterval = 5 * time.Second

// Run streams the tabular export from r into st and returns the number of
// rows actually newly inserted (duplicates by transaction id are skipped and
// not counted).
//
// The header is validated before any row is processed; failures surface as
// ErrEmptyInput, a SchemaError, or a RowParseError. The run holds the
// store's exclusive ingest lease; a concurrent run fails with
// store.ErrIngestActive. If a row fails to parse mid-stream, the run aborts
// and rows inserted by prior batches remain in place.
func Run(ctx context.Context, st *store.Store, r io.Reader, opts Options) (int64, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	log := logging.WithComponent("ingest")

	release, err := st.AcquireIngestLease()
	if err != nil {
		return 0, err
	}
	defer release()

	br, err := NewBatchReader(r, opts.ChunkSize)
	if err != nil {
		return 0, err
	}

	if opts.Replace {
		if err := st.Reset(ctx); err != nil {
			return 0, fmt.Errorf("reset store: %w", err)
		}
	}

	log.Info().
		Int("chunk_size", opts.ChunkSize).
		Bool("replace", opts.Replace).
		Msg("starting ingestion run")

	var inserted int64
	batches := 0
	startTime := time.Now()
	lastLogTime := startTime

	for {
		if ctx.Err() != nil {
			return inserted, ctx.Err()
		}

		batch, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return inserted, err
		}

		n, err := st.InsertBatch(ctx, batch)
		if err != nil {
			return inserted, fmt.Errorf("insert batch %d: %w", batches+1, err)
		}
		inserted += n
		batches++

		if time.Since(lastLogTime) >= progressInterval {
			log.Info().
				Int64("rows", br.Rows()).
				Int64("inserted", inserted).
				Int("batches", batches).
				Str("rate", humanfmt.RowRate(br.Rows(), time.Since(startTime))).
				Dur("elapsed", time.Since(startTime)).
				Msg("ingestion progress")
			lastLogTime = time.Now()
		}
	}

	elapsed := time.Since(startTime)
	log.Info().
		Int64("rows", br.Rows()).
		Int64("inserted", inserted).
		Int64("duplicates_skipped", br.Rows()-inserted).
		Int("batches", batches).
		Str("rate", humanfmt.RowRate(br.Rows(), elapsed)).
		Dur("elapsed", elapsed).
		Msg("ingestion complete")

	return inserted, nil
}
