package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/guillermoBallester/asksql/internal/core/domain"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// printError reports a gate rejection as a warning with its reason; anything
// else is printed as a plain error.
func printError(w io.Writer, err error) {
	var violation *domain.SafetyViolation
	if errors.As(err, &violation) {
		fmt.Fprintf(w, "warning: %s (%s)\n", violation.Error(), violation.Reason)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
