package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ProcessError describes a child process that could not be started or did
// not exit cleanly.
type ProcessError struct {
	// Name is how the process is referred to in messages.
	Name string
	// Code is the exit code, or -1 if the process did not exit normally.
	Code int
	// Signal names the terminating signal, if any.
	Signal string
	// Killed is set when cargo-fixture killed the process itself.
	Killed bool
	// Err is the start or wait failure, if any.
	Err error
}

func (e *ProcessError) Error() string {
	switch {
	case e.Killed:
		return e.Name + " failed: terminated"
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Name, e.Err)
	case e.Signal != "":
		return fmt.Sprintf("%s failed: killed by signal %s", e.Name, e.Signal)
	default:
		return fmt.Sprintf("%s failed: exit code: %d", e.Name, e.Code)
	}
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ExitCode is the status cargo-fixture exits with when this error ends the
// run: the child's code when it had one, 1 otherwise.
func (e *ProcessError) ExitCode() int {
	if e.Code > 0 {
		return e.Code
	}
	return 1
}

// exitResult classifies the outcome of cmd.Wait or cmd.Run. A normal exit,
// zero or not, is reported as a code with a nil error.
func exitResult(name string, state *os.ProcessState, err error) (int, error) {
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return -1, &ProcessError{Name: name, Code: -1, Err: err}
	}
	if state == nil && exitErr != nil {
		state = exitErr.ProcessState
	}
	if state == nil {
		return -1, &ProcessError{Name: name, Code: -1, Err: errors.New("no exit status")}
	}
	if code := state.ExitCode(); code >= 0 {
		return code, nil
	}
	return -1, &ProcessError{Name: name, Code: -1, Signal: signalName(state)}
}
