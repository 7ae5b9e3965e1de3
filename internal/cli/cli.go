// Package cli implements the command-line interface for txsum.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ecomware/tx-summary-db/internal/api"
	"github.com/ecomware/tx-summary-db/pkg/datagen"
	"github.com/ecomware/tx-summary-db/pkg/humanfmt"
	"github.com/ecomware/tx-summary-db/pkg/ingest"
	"github.com/ecomware/tx-summary-db/pkg/logging"
	"github.com/ecomware/tx-summary-db/pkg/store"
	"github.com/ecomware/tx-summary-db/pkg/summary"
)

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: txsum <command> [options]\ncommands: ingest, summary, generate, serve")
	}

	switch args[0] {
	case "ingest":
		return runIngest(args[1:])
	case "summary":
		return runSummary(args[1:])
	case "generate":
		return runGenerate(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func addLogFlags(fs *flag.FlagSet) (debug, pretty *bool) {
	debug = fs.Bool("debug", false, "enable debug logging")
	pretty = fs.Bool("pretty", false, "human-friendly log output")
	return debug, pretty
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the SQLite database file")
	chunkSize := fs.Int("chunk-size", ingest.DefaultChunkSize, "max rows per insert batch")
	appendRows := fs.Bool("append", false, "keep existing rows instead of replacing the store")
	debug, pretty := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Init(*debug, *pretty)

	if *dbPath == "" {
		return errors.New("--db is required")
	}
	files := fs.Args()
	if len(files) != 1 {
		return errors.New("exactly one input file is required")
	}

	st, err := store.Open(store.DefaultConfig(*dbPath))
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Open(files[0])
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	reader, closeFn, err := ingest.DecompressReader(f, files[0])
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	opts := ingest.Options{ChunkSize: *chunkSize, Replace: !*appendRows}
	inserted, err := ingest.Run(context.Background(), st, reader, opts)
	if err != nil {
		return err
	}

	fmt.Printf("inserted %s rows\n", humanfmt.Count(inserted))
	return nil
}

func runSummary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the SQLite database file")
	userID := fs.Int64("user", 0, "user id to summarize")
	start := fs.String("start", "", "inclusive start bound (any common date format)")
	end := fs.String("end", "", "inclusive end bound (any common date format)")
	debug, pretty := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Init(*debug, *pretty)

	if *dbPath == "" {
		return errors.New("--db is required")
	}
	if *userID == 0 {
		return errors.New("--user is required")
	}

	st, err := store.Open(store.DefaultConfig(*dbPath))
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := summary.Summarize(context.Background(), st, *userID, *start, *end)
	if err != nil {
		return err
	}

	fmt.Printf("user %d: count=%d min=%s max=%s mean=%s\n",
		res.UserID, res.Count, fmtStat(res.Min), fmtStat(res.Max), fmtStat(res.Mean))
	return nil
}

func fmtStat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	out := fs.String("out", "", "output CSV file path")
	rows := fs.Int("rows", 1_000_000, "number of transactions to generate")
	users := fs.Int("users", 1000, "number of distinct user ids")
	products := fs.Int("products", 500, "number of distinct product ids")
	seed := fs.Int64("seed", 42, "random seed")
	debug, pretty := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Init(*debug, *pretty)

	if *out == "" {
		return errors.New("--out is required")
	}

	cfg := datagen.DefaultConfig(*rows)
	cfg.Users = *users
	cfg.Products = *products
	cfg.Seed = *seed

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	startTime := time.Now()
	written, err := datagen.NewGenerator(cfg).WriteCSV(f)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	fmt.Printf("wrote %s rows to %s in %s\n",
		humanfmt.Count(written), *out, humanfmt.Duration(time.Since(startTime)))
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the SQLite database file")
	addr := fs.String("addr", ":8080", "listen address")
	chunkSize := fs.Int("chunk-size", ingest.DefaultChunkSize, "max rows per insert batch")
	debug, pretty := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Init(*debug, *pretty)

	if *dbPath == "" {
		return errors.New("--db is required")
	}

	st, err := store.Open(store.DefaultConfig(*dbPath))
	if err != nil {
		return err
	}
	defer st.Close()

	return api.New(st, *chunkSize).Start(*addr)
}
