package cargo_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargo-fixture/pkg/cargo"
)

// fakeCargo writes an executable shell script standing in for cargo.
func fakeCargo(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake cargo needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "cargo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700)) //nolint:gosec // test script must be executable
	return path
}

func TestReadMetadata(t *testing.T) {
	cargoPath := fakeCargo(t, `
[ "$1" = metadata ] || exit 3
echo '{"packages":[],"target_directory":"/work/target","version":1}'`)

	inv := &cargo.Invocation{Cargo: cargoPath}
	md, err := inv.ReadMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/work/target", md.TargetDirectory)
}

func TestReadMetadataFailure(t *testing.T) {
	cargoPath := fakeCargo(t, `echo "error: could not find Cargo.toml" >&2; exit 101`)

	inv := &cargo.Invocation{Cargo: cargoPath}
	_, err := inv.ReadMetadata(context.Background())
	require.ErrorContains(t, err, "cargo metadata command failed")
}

func TestReadMetadataGarbage(t *testing.T) {
	cargoPath := fakeCargo(t, `echo 'not json'`)

	inv := &cargo.Invocation{Cargo: cargoPath}
	_, err := inv.ReadMetadata(context.Background())
	require.ErrorContains(t, err, "failed to deserialize")
}
