// Package datagen provides synthetic transaction CSV generation for testing
// and benchmarks.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ecomware/tx-summary-db/pkg/txn"
)

// Config configures synthetic data generation.
type Config struct {
	// Rows is the total number of transactions to generate.
	Rows int
	// Users is the number of distinct user ids (1..Users).
	Users int
	// Products is the number of distinct product ids (1..Products).
	Products int
	// MinAmount and MaxAmount bound the uniform amount distribution.
	MinAmount float64
	MaxAmount float64
	// Start and End bound the timestamp window. Zero values mean the year
	// ending at generator creation time.
	Start time.Time
	End   time.Time
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a reasonable default configuration mirroring a
// typical e-commerce export: 1000 users, 500 products, amounts between 5
// and 500.
func DefaultConfig(rows int) Config {
	return Config{
		Rows:      rows,
		Users:     1000,
		Products:  500,
		MinAmount: 5.0,
		MaxAmount: 500.0,
		Seed:      42,
	}
}

// Generator generates synthetic transaction data.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// NewGenerator creates a new data generator, filling config defaults for
// zero values.
func NewGenerator(cfg Config) *Generator {
	if cfg.Users <= 0 {
		cfg.Users = 1000
	}
	if cfg.Products <= 0 {
		cfg.Products = 500
	}
	if cfg.MaxAmount <= cfg.MinAmount {
		cfg.MinAmount = 5.0
		cfg.MaxAmount = 500.0
	}
	if cfg.End.IsZero() {
		cfg.End = time.Now().UTC().Truncate(time.Second)
	}
	if cfg.Start.IsZero() {
		cfg.Start = cfg.End.AddDate(-1, 0, 0)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// WriteCSV streams the configured number of rows, plus the header, to w.
// Output is deterministic for a fixed seed and time window. Returns the
// number of data rows written.
func (g *Generator) WriteCSV(w io.Writer) (int64, error) {
	cw := csv.NewWriter(w)

	header := []string{"transaction_id", "user_id", "product_id", "timestamp", "transaction_amount"}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	var written int64
	row := make([]string, len(header))
	for i := 0; i < g.cfg.Rows; i++ {
		if err := g.fillRow(row); err != nil {
			return written, err
		}
		if err := cw.Write(row); err != nil {
			return written, fmt.Errorf("write row %d: %w", i+1, err)
		}
		written++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, fmt.Errorf("flush csv: %w", err)
	}
	return written, nil
}

func (g *Generator) fillRow(row []string) error {
	// uuid ids from the seeded source keep the stream reproducible
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return fmt.Errorf("generate transaction id: %w", err)
	}

	row[0] = id.String()
	row[1] = strconv.Itoa(1 + g.rng.Intn(g.cfg.Users))
	row[2] = strconv.Itoa(1 + g.rng.Intn(g.cfg.Products))
	row[3] = txn.CanonicalTime(g.randomTime())
	row[4] = strconv.FormatFloat(g.randomAmount(), 'f', 2, 64)
	return nil
}

func (g *Generator) randomTime() time.Time {
	window := g.cfg.End.Unix() - g.cfg.Start.Unix()
	if window <= 0 {
		return g.cfg.Start
	}
	return time.Unix(g.cfg.Start.Unix()+g.rng.Int63n(window+1), 0).UTC()
}

func (g *Generator) randomAmount() float64 {
	v := g.cfg.MinAmount + g.rng.Float64()*(g.cfg.MaxAmount-g.cfg.MinAmount)
	return math.Round(v*100) / 100
}
