package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/spf13/cobra"
)

// Process exit codes, one per error kind.
const (
	ExitOK                      = 0
	ExitFailure                 = 1
	ExitQueueNotFound           = 2
	ExitDuplicateQueue          = 3
	ExitInvalidParameter        = 4
	ExitPayloadTooLarge         = 5
	ExitMessageNotFound         = 6
	ExitNoMessageAvailable      = 7
	ExitBackingStoreUnavailable = 8
	ExitConcurrentModification  = 9
)

// ExitCode maps err to the process exit code for its kind.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch rsmq.Kind(err) {
	case rsmq.ErrQueueNotFound:
		return ExitQueueNotFound
	case rsmq.ErrDuplicateQueue:
		return ExitDuplicateQueue
	case rsmq.ErrInvalidParameter:
		return ExitInvalidParameter
	case rsmq.ErrPayloadTooLarge:
		return ExitPayloadTooLarge
	case rsmq.ErrMessageNotFound:
		return ExitMessageNotFound
	case rsmq.ErrNoMessageAvailable:
		return ExitNoMessageAvailable
	case rsmq.ErrBackingStoreUnavailable:
		return ExitBackingStoreUnavailable
	case rsmq.ErrConcurrentModificationRetryExhausted:
		return ExitConcurrentModification
	}
	return ExitFailure
}

// Fail writes "Error: <err>" to w and returns the exit code for err.
func Fail(w io.Writer, err error) int {
	fmt.Fprintf(w, "Error: %v\n", err)
	return ExitCode(err)
}

// Execute runs cmd with ctx and returns the process exit code. Errors are
// reported once, by Fail, instead of by cobra.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	if err := cmd.ExecuteContext(ctx); err != nil {
		return Fail(cmd.ErrOrStderr(), err)
	}
	return ExitOK
}

// Main runs cmd until SIGINT or SIGTERM and exits with its code.
func Main(cmd *cobra.Command) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, cmd)
	cancel()
	os.Exit(code)
}
