package main

import (
	"os"
	"os/exec"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/pkg/protocol"
)

// checkNotNested refuses to run inside another cargo-fixture's process tree.
func checkNotNested() error {
	if _, nested := os.LookupEnv(protocol.EnvNested); nested {
		return ferrors.New(ferrors.KindConfig, "cannot run cargo fixture inside another cargo fixture")
	}
	return nil
}

// markNested exports the nesting marker to every child.
func markNested() error {
	return os.Setenv(protocol.EnvNested, "1")
}

// runPreflightChecks verifies the cargo executable can be found before any
// work is done.
func runPreflightChecks(cargoPath string) error {
	if _, err := exec.LookPath(cargoPath); err != nil {
		return ferrors.Wrapf(err, ferrors.KindConfig, "cargo executable %q not found (set CARGO to override)", cargoPath)
	}
	return nil
}
