// Command mfledger maintains per-fund holdings ledgers from monthly portfolio
// disclosures and answers overlap, flow and summary queries over them.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
