// Command catflow enriches an event log with item categories and their
// ancestry, and inspects the reports of past runs.
//
// Usage:
//
//	catflow run --config catflow.yaml --formats csv,jsonl --workers 4
//	catflow reports --report-db runs.db
//	catflow reports --report-db runs.db <run-id>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/config"
	"github.com/randalmurphal/catflow/pkg/catflow/pipeline"
	"github.com/urfave/cli/v3"
)

// Exit codes.
const (
	exitOK           = 0
	exitFailed       = 1
	exitInvalid      = 2
	exitMissingInput = 3
	exitCancelled    = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and maps its error to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 1 {
		args = append(args, "--help")
	}
	root := &cli.Command{
		Name:      "catflow",
		Usage:     "Enrich event logs with item categories and category ancestry",
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			runCommand(),
			reportsCommand(),
		},
	}

	err := root.Run(ctx, args)
	if err != nil {
		fmt.Fprintf(stderr, "catflow: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var cancelled *pipeline.CancellationError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrInvalidSettings):
		return exitInvalid
	case errors.Is(err, catflow.ErrMissingInput):
		return exitMissingInput
	case errors.As(err, &cancelled), errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitFailed
	}
}
