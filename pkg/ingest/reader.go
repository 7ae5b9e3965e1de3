package ingest

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// newCSVReader creates a csv.Reader configured for transaction exports.
// The reader is configured to:
//   - Reuse record slices for performance
//   - Accept variable field counts (FieldsPerRecord = -1)
//   - Handle lazy quotes common in ad-hoc exports
func newCSVReader(r io.Reader) *csv.Reader {
	csvr := csv.NewReader(r)
	csvr.ReuseRecord = true
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true
	return csvr
}

// DecompressReader wraps a reader with gzip decompression if the name ends
// in .gz. Returns the reader (possibly wrapped), a closer function that must
// be called, and any error. The closer may be nil if no decompression
// wrapper was added.
func DecompressReader(r io.Reader, name string) (io.Reader, func() error, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".gz") {
		return r, nil, nil
	}

	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("create gzip reader: %w", err)
	}
	return gzr, gzr.Close, nil
}
