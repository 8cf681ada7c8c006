// Package cliutil provides the shared command-line scaffolding for
// cmd/tailor: a signal-aware entry point and exit-code mapping from
// tailorerr.Kind, grounded on the teacher's own appshell/Main pattern and
// generalized from a single command to a build/map subcommand dispatch.
package cliutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/eernst/tailor/internal/tailorerr"
)

// Command runs one subcommand against argv (with the subcommand name
// already stripped), writing to stdout/stderr, and returns the error that
// determines the process exit code.
type Command func(ctx context.Context, argv []string, stdout, stderr io.Writer) error

// Main dispatches os.Args[1] to one of cmds by name, runs it under a
// context cancelled on SIGINT/SIGTERM, maps the returned error to an exit
// code via ExitCode, and calls os.Exit. It never returns.
func Main(cmds map[string]Command, usage string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, ok := cmds[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "tailor: unknown subcommand %q\n%s\n", args[0], usage)
		os.Exit(1)
	}

	err := cmd(ctx, args[1:], os.Stdout, os.Stderr)
	code := ExitCode(err)
	if err != nil && code != 1 {
		fmt.Fprintf(os.Stderr, "tailor: %v\n", err)
	}
	os.Exit(code)
}

// ExitCode maps an error to the process exit code mandated by spec.md §6,
// via tailorerr.Kind.ExitCode. An error carrying no Kind also exits 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	kind, ok := tailorerr.As(err)
	if !ok {
		return 1
	}
	return kind.ExitCode()
}
