// Command regridd serves precomputed-matrix regridding over HTTP and
// extracts subsets of matrix repositories.
//
// Usage:
//
//	regridd [serve] [flags]
//	regridd subset --filters FILE --out DIR [flags]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
