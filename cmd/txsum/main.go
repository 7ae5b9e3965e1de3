// Command txsum ingests bulk transaction exports and answers per-user
// aggregate summaries.
package main

import (
	"fmt"
	"os"

	"github.com/ecomware/tx-summary-db/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
