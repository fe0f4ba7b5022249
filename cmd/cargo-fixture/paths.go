package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cargo-fixture/pkg/cargo"
)

// maxSocketPath is the longest socket path bind accepts on every supported
// platform (sun_path is 104 bytes on macOS, 108 on Linux).
const maxSocketPath = 103

// socketName is the rendezvous file name for process pid.
func socketName(pid int) string {
	return fmt.Sprintf(".cargo-fixture-%d.sock", pid)
}

// socketPathIn returns the rendezvous path inside dir. A path too long to
// bind falls back to the system temp directory.
func socketPathIn(dir string, pid int) string {
	path := filepath.Join(dir, socketName(pid))
	if len(path) <= maxSocketPath {
		return path
	}
	fallback := filepath.Join(os.TempDir(), socketName(pid))
	slog.Debug("socket path too long, using temp directory", "path", path, "fallback", fallback)
	return fallback
}

// resolveSocketPath picks the socket directory: socketDir when configured,
// else cargo's target directory from `cargo metadata`.
func resolveSocketPath(ctx context.Context, inv *cargo.Invocation, socketDir string) (string, error) {
	dir := socketDir
	if dir == "" {
		md, err := inv.ReadMetadata(ctx)
		if err != nil {
			return "", err
		}
		dir = md.TargetDirectory
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create socket directory: %w", err)
	}
	return socketPathIn(dir, os.Getpid()), nil
}
