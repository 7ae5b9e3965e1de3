package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecomware/tx-summary-db/pkg/txn"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func rec(id string, userID int64, productID int64, ts string, amount float64) txn.Record {
	return txn.Record{ID: id, UserID: userID, ProductID: &productID, Timestamp: ts, Amount: amount}
}

func TestOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			cfg:     DefaultConfig("/tmp/test.db"),
			wantErr: false,
		},
		{
			name:    "empty db path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "invalid synchronous",
			cfg: Config{
				DBPath:      "/tmp/test.db",
				Synchronous: "INVALID",
			},
			wantErr: true,
		},
		{
			name: "negative mmap size",
			cfg: Config{
				DBPath:   "/tmp/test.db",
				MmapSize: -1,
			},
			wantErr: true,
		},
		{
			name: "empty synchronous uses default",
			cfg: Config{
				DBPath: "/tmp/test.db",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInsertBatchDeduplicates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	batch := []txn.Record{
		rec("tx1", 1, 10, "2024-09-01T12:00:00", 100.0),
		rec("tx2", 1, 11, "2024-09-02T12:00:00", 50.0),
		rec("tx3", 2, 12, "2024-09-01T13:00:00", 200.0),
	}

	n, err := st.InsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}

	// Re-inserting the same batch is a no-op and reports zero new rows.
	n, err = st.InsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("InsertBatch (repeat) failed: %v", err)
	}
	if n != 0 {
		t.Errorf("repeat inserted = %d, want 0", n)
	}

	// An overlapping batch counts only the genuinely new row.
	n, err = st.InsertBatch(ctx, []txn.Record{
		rec("tx2", 1, 11, "2024-09-02T12:00:00", 50.0),
		rec("tx4", 2, 13, "2024-09-03T12:00:00", 75.0),
	})
	if err != nil {
		t.Fatalf("InsertBatch (overlap) failed: %v", err)
	}
	if n != 1 {
		t.Errorf("overlap inserted = %d, want 1", n)
	}

	total, err := st.CountRows(ctx)
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if total != 4 {
		t.Errorf("total rows = %d, want 4", total)
	}
}

func TestInsertBatchDoesNotOverwrite(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.InsertBatch(ctx, []txn.Record{rec("tx1", 1, 10, "2024-09-01T12:00:00", 100.0)}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	// Same id, different amount: the original row must survive.
	if _, err := st.InsertBatch(ctx, []txn.Record{rec("tx1", 1, 10, "2024-09-01T12:00:00", 999.0)}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	agg, err := st.QueryAggregate(ctx, 1, nil, nil)
	if err != nil {
		t.Fatalf("QueryAggregate failed: %v", err)
	}
	if agg.Count != 1 || agg.Max == nil || *agg.Max != 100.0 {
		t.Errorf("got count=%d max=%v, want count=1 max=100.0", agg.Count, agg.Max)
	}
}

func TestInsertBatchNilProductID(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	n, err := st.InsertBatch(ctx, []txn.Record{
		{ID: "tx1", UserID: 1, ProductID: nil, Timestamp: "2024-09-01T12:00:00", Amount: 10.0},
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}
}

func TestInsertBatchLargerThanMultiRowBatch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// Exercises both the multi-row statement and the single-row remainder.
	batch := make([]txn.Record, MultiRowBatchSize+7)
	for i := range batch {
		batch[i] = txn.Record{
			ID:        fmt.Sprintf("tx%04d", i),
			UserID:    int64(1 + i%5),
			Timestamp: "2024-09-01T12:00:00",
			Amount:    float64(i),
		}
	}

	n, err := st.InsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if n != int64(len(batch)) {
		t.Errorf("inserted = %d, want %d", n, len(batch))
	}
}

func TestReset(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.InsertBatch(ctx, []txn.Record{rec("tx1", 1, 10, "2024-09-01T12:00:00", 100.0)}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := st.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	total, err := st.CountRows(ctx)
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if total != 0 {
		t.Errorf("rows after reset = %d, want 0", total)
	}

	// Reset is idempotent.
	if err := st.Reset(ctx); err != nil {
		t.Fatalf("second Reset failed: %v", err)
	}

	// The store is usable again after a reset.
	if _, err := st.InsertBatch(ctx, []txn.Record{rec("tx1", 1, 10, "2024-09-01T12:00:00", 100.0)}); err != nil {
		t.Fatalf("InsertBatch after reset failed: %v", err)
	}
}

func TestIngestLease(t *testing.T) {
	st := openTestStore(t)

	release, err := st.AcquireIngestLease()
	if err != nil {
		t.Fatalf("AcquireIngestLease failed: %v", err)
	}

	if _, err := st.AcquireIngestLease(); err != ErrIngestActive {
		t.Errorf("second acquire error = %v, want ErrIngestActive", err)
	}

	release()

	release2, err := st.AcquireIngestLease()
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}

func TestBuildInsertSQL(t *testing.T) {
	got := buildInsertSQL(2)
	want := "INSERT OR IGNORE INTO transactions (transaction_id, user_id, product_id, timestamp, amount) VALUES (?, ?, ?, ?, ?), (?, ?, ?, ?, ?)"
	if got != want {
		t.Errorf("buildInsertSQL(2) = %q, want %q", got, want)
	}
}
