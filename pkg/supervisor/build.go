package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"cargo-fixture/pkg/cargo"
)

// Build runs the fixture build command, usually from
// cargo.Invocation.BuildCmd, and returns the path of the fixture
// executable announced on its stdout. cmd must not have Stdout set.
//
// The build's own failure takes precedence over a problem reading its
// output, which takes precedence over the artifact not being found.
func Build(cmd *exec.Cmd, fixture string) (string, error) {
	slog.Info("building fixture program...")
	slog.Debug("running " + cargo.Display(cmd.Args))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("cargo test: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", &ProcessError{Name: "cargo test", Code: -1, Err: err}
	}

	found := make(chan struct{})
	var exe string
	var findErr error
	go func() {
		defer close(found)
		exe, findErr = cargo.FindArtifact(stdout, fixture)
	}()

	// FindArtifact reads to EOF, so Wait is only called once the pipe has
	// been fully consumed. Cancelling ctx kills cargo, which closes it.
	<-found
	waitErr := cmd.Wait()
	code, err := exitResult("cargo test", cmd.ProcessState, waitErr)
	switch {
	case err != nil:
		return "", err
	case code != 0:
		return "", &ProcessError{Name: "cargo test", Code: code}
	case errors.Is(findErr, cargo.ErrArtifactNotFound):
		return "", findErr
	case findErr != nil:
		return "", fmt.Errorf("error reading cargo JSON output: %w", findErr)
	}
	slog.Debug("fixture executable", "path", exe)
	return exe, nil
}
