// Command gifctl browses, lists and prefetches GIFs from the developerslife API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/devlife-client/internal/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		console.Error.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
