// Package main is the entry point for cargo-fixture, a cargo subcommand
// that surrounds `cargo test` with a fixture program.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cargo-fixture/internal/logger"
	"cargo-fixture/pkg/supervisor"

	"github.com/spf13/cobra"
)

func main() {
	code, err := execute(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(code)
}

// exitCodeFor is the status a fatal error ends the run with: a failed
// fixture's own exit code, 1 for anything else.
func exitCodeFor(err error) int {
	var pe *supervisor.ProcessError
	if errors.As(err, &pe) {
		return pe.ExitCode()
	}
	return 1
}

func execute(args []string) (int, error) {
	if err := checkNotNested(); err != nil {
		return 0, err
	}
	if err := markNested(); err != nil {
		return 0, err
	}
	return runCLI(context.Background(), args, os.Getenv)
}

// runCLI parses args and runs cargo-fixture, returning the exit code of the
// test command.
func runCLI(ctx context.Context, args []string, getenv func(string) string) (int, error) {
	// cargo invokes subcommands as `cargo-fixture fixture ...`.
	if len(args) > 0 && args[0] == "fixture" {
		args = args[1:]
	}

	var code int
	opts := &options{}
	cmd := newRootCmd(opts, func(cmd *cobra.Command, opts *options) error {
		c, err := runFixture(cmd.Context(), opts, getenv)
		code = c
		return err
	})
	cmd.SetArgs(splitArgs(cmd.Flags(), args, opts))
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 0, err
	}
	return code, nil
}

func runFixture(ctx context.Context, opts *options, getenv func(string) string) (int, error) {
	wd, err := os.Getwd()
	if err != nil {
		return 0, fmt.Errorf("get working directory: %w", err)
	}
	path, err := findConfig(wd, opts.configFile)
	if err != nil {
		return 0, err
	}
	var file *fileConfig
	if path != "" {
		if file, err = loadConfigFile(path); err != nil {
			return 0, err
		}
	}

	s, err := resolve(opts, file, getenv)
	if err != nil {
		return 0, err
	}
	logger.Init(s.logLevel, os.Stderr)
	if path != "" {
		slog.Debug("loaded config", "path", path)
	}

	if err := runPreflightChecks(s.inv.Cargo); err != nil {
		return 0, err
	}
	if s.inv.SocketPath, err = resolveSocketPath(ctx, &s.inv, s.socketDir); err != nil {
		return 0, err
	}
	return serve(ctx, s)
}
