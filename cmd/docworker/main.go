// Command docworker is the conversion worker spawned by docconv. It speaks
// the framed protocol on stdin/stdout and writes diagnostics to stderr.
// It takes no arguments; stdout carries nothing but frames.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alnah/go-docconv/internal/engine"
	"github.com/alnah/go-docconv/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Serve(ctx, os.Stdin, os.Stdout, os.Stderr, engine.New()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
