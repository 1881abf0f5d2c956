package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"vidfinder/internal/failures"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode prints err and maps it to the process status: 130 for an
// interrupt, 1 for anything else.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, failures.ErrInterrupted), errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "vidfinder: interrupted")
		return 130
	default:
		fmt.Fprintf(stderr, "vidfinder: %v\n", err)
		return 1
	}
}
