// Package store implements the durable, primary-key-deduplicated transaction
// store backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ecomware/tx-summary-db/pkg/logging"
	"github.com/ecomware/tx-summary-db/pkg/txn"
)

// Config holds configuration for the SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
	// Synchronous sets the SQLite synchronous pragma.
	// "NORMAL" is the default (good balance of safety and speed).
	// "OFF" for maximum speed (unsafe on crash).
	// "FULL" for maximum safety.
	Synchronous string
	// MmapSize is the mmap size in bytes (default 256MB).
	MmapSize int64
	// CacheSizeKB is the cache size in KB (default 64MB).
	CacheSizeKB int
}

// DefaultConfig returns a default configuration tuned for bulk loads.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:      dbPath,
		Synchronous: "NORMAL",
		MmapSize:    268435456, // 256MB
		CacheSizeKB: 65536,     // 64MB
	}
}

// Validate checks configuration values and returns an error for invalid settings.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DBPath is required")
	}
	switch c.Synchronous {
	case "", "OFF", "NORMAL", "FULL":
		// Valid values
	default:
		return fmt.Errorf("invalid Synchronous value %q: must be OFF, NORMAL, or FULL", c.Synchronous)
	}
	if c.MmapSize < 0 {
		return fmt.Errorf("MmapSize must be non-negative, got %d", c.MmapSize)
	}
	if c.CacheSizeKB < 0 {
		return fmt.Errorf("CacheSizeKB must be non-negative, got %d", c.CacheSizeKB)
	}
	return nil
}

// MultiRowBatchSize is the number of rows per multi-row INSERT statement.
// Larger batches reduce SQLite exec calls; 5 columns per row keeps the bind
// variable count well below SQLite's limit.
const MultiRowBatchSize = 128

// ErrIngestActive is returned when a second ingestion run is started while
// one is already holding the ingest lease.
var ErrIngestActive = errors.New("another ingestion run is already active")

// Store is the deduplicating transaction store. Records are keyed by
// transaction id; inserting an id that already exists is a silent no-op.
// A secondary index on (user_id, timestamp) makes per-user range scans
// sublinear in total row count.
type Store struct {
	db  *sql.DB
	cfg Config

	// ingestMu is the exclusive lease around an ingestion run. At most one
	// ingestion job may be active per store; see AcquireIngestLease.
	ingestMu sync.Mutex
}

// Open creates or opens the SQLite store.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logging.WithComponent("store")

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	synchronous := cfg.Synchronous
	if synchronous == "" {
		synchronous = "NORMAL"
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA synchronous=%s", synchronous),
		"PRAGMA temp_store=MEMORY",
		fmt.Sprintf("PRAGMA mmap_size=%d", cfg.MmapSize),
		fmt.Sprintf("PRAGMA cache_size=-%d", cfg.CacheSizeKB),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Info().
		Str("db_path", cfg.DBPath).
		Str("synchronous", synchronous).
		Msg("opened transaction store")

	return &Store{db: db, cfg: cfg}, nil
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		product_id INTEGER,
		timestamp TEXT NOT NULL,
		amount REAL NOT NULL
	)
`

const createIndexSQL = `
	CREATE INDEX IF NOT EXISTS idx_user_time ON transactions(user_id, timestamp)
`

func createSchema(db *sql.DB) error {
	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("create user/time index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AcquireIngestLease claims the exclusive ingestion lease and returns the
// release function. It fails with ErrIngestActive if another run holds the
// lease. Queries do not take the lease; a query issued during an ingestion
// run observes whatever prefix of the load has been committed.
func (s *Store) AcquireIngestLease() (release func(), err error) {
	if !s.ingestMu.TryLock() {
		return nil, ErrIngestActive
	}
	return s.ingestMu.Unlock, nil
}

// Reset idempotently drops and recreates the transactions table and its
// secondary index as a single transaction. Callers requesting replace
// semantics invoke it once at the start of a fresh ingestion run.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset transaction: %w", err)
	}

	stmts := []string{
		"DROP TABLE IF EXISTS transactions",
		createTableSQL,
		createIndexSQL,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("reset store: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// InsertBatch inserts the given records inside one transaction. Records
// whose id collides with an existing row are silently skipped, never
// overwritten. Returns the number of rows actually newly inserted, so
// retrying with an overlapping batch is observable as a smaller count, not
// an error.
func (s *Store) InsertBatch(ctx context.Context, records []txn.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}

	var inserted int64

	// Full batches through one prepared multi-row statement, remainder
	// through a single-row statement.
	full := len(records) / MultiRowBatchSize * MultiRowBatchSize
	if full > 0 {
		stmt, err := tx.PrepareContext(ctx, buildInsertSQL(MultiRowBatchSize))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("prepare multi-row insert: %w", err)
		}

		args := make([]interface{}, MultiRowBatchSize*insertColsPerRow)
		for i := 0; i < full; i += MultiRowBatchSize {
			for j := 0; j < MultiRowBatchSize; j++ {
				fillInsertArgs(args[j*insertColsPerRow:], records[i+j])
			}
			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return 0, fmt.Errorf("insert rows %d-%d: %w", i, i+MultiRowBatchSize-1, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return 0, fmt.Errorf("rows affected: %w", err)
			}
			inserted += n
		}
		stmt.Close()
	}

	if full < len(records) {
		stmt, err := tx.PrepareContext(ctx, buildInsertSQL(1))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("prepare single-row insert: %w", err)
		}

		args := make([]interface{}, insertColsPerRow)
		for _, rec := range records[full:] {
			fillInsertArgs(args, rec)
			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return 0, fmt.Errorf("insert row %q: %w", rec.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return 0, fmt.Errorf("rows affected: %w", err)
			}
			inserted += n
		}
		stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

const insertColsPerRow = 5

// buildInsertSQL builds an insert-or-ignore statement for n rows.
func buildInsertSQL(n int) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = "(?, ?, ?, ?, ?)"
	}
	return "INSERT OR IGNORE INTO transactions (transaction_id, user_id, product_id, timestamp, amount) VALUES " +
		strings.Join(rows, ", ")
}

func fillInsertArgs(args []interface{}, rec txn.Record) {
	args[0] = rec.ID
	args[1] = rec.UserID
	if rec.ProductID != nil {
		args[2] = *rec.ProductID
	} else {
		args[2] = nil
	}
	args[3] = rec.Timestamp
	args[4] = rec.Amount
}

// CountRows returns the total number of stored records.
func (s *Store) CountRows(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return count, nil
}
