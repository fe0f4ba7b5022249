package cargo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Metadata is the part of `cargo metadata` output cargo-fixture uses.
type Metadata struct {
	TargetDirectory string `json:"target_directory"`
}

// MetadataArgv is the argv reading workspace metadata.
func (inv *Invocation) MetadataArgv() []string {
	argv := []string{inv.Cargo, "metadata"}
	argv = append(argv, inv.CommonAll...)
	return append(argv, "--format-version", "1", "--no-deps")
}

// ReadMetadata runs `cargo metadata`. On failure cargo's stderr is relayed
// to ours.
func (inv *Invocation) ReadMetadata(ctx context.Context) (*Metadata, error) {
	argv := inv.MetadataArgv()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_, _ = os.Stderr.Write(stderr.Bytes())
		return nil, fmt.Errorf("cargo metadata command failed: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(stdout.Bytes(), &md); err != nil {
		return nil, fmt.Errorf("failed to deserialize `cargo metadata` output: %w", err)
	}
	if md.TargetDirectory == "" {
		return nil, fmt.Errorf("`cargo metadata` output has no target_directory")
	}
	return &md, nil
}
