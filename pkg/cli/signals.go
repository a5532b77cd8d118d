package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a child of parent that is canceled on SIGINT
// or SIGTERM. The stop function releases the signal registration; after
// the first signal a second one terminates the process normally.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
