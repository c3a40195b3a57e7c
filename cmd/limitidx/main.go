// Command limitidx indexes limit-order update events into one record per order.
package main

import (
	"context"
	"os"

	"github.com/roach88/limitidx/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
