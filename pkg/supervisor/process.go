// Package supervisor runs and watches the child processes of a
// cargo-fixture run.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Process is a started child whose exit is observed in the background.
type Process struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}

	killed atomic.Bool

	mu  sync.Mutex
	err error
}

// Start launches cmd in a process group of its own, so a terminal interrupt
// aimed at cargo-fixture does not reach it, and reaps it in the background.
func Start(cmd *exec.Cmd, name string) (*Process, error) {
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return nil, &ProcessError{Name: name, Code: -1, Err: err}
	}

	p := &Process{name: name, cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	waitErr := p.cmd.Wait()

	var err error
	code, exitErr := exitResult(p.name, p.cmd.ProcessState, waitErr)
	switch {
	case p.killed.Load() && (exitErr != nil || code != 0):
		err = &ProcessError{Name: p.name, Code: code, Killed: true}
	case exitErr != nil:
		err = exitErr
	case code != 0:
		err = &ProcessError{Name: p.name, Code: code}
	}

	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

// Pid is the process ID, which is also its process group ID.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err is the outcome after Done is closed: nil for exit code 0, a
// *ProcessError otherwise.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the process exits and returns Err.
func (p *Process) Wait() error {
	<-p.done
	return p.Err()
}

// Kill forcibly terminates the process and its group after a double
// interrupt.
func (p *Process) Kill() {
	p.Terminate("double Ctrl+C received")
}

// Terminate forcibly terminates the process and its group, logging reason
// first. Failures are logged: the process may already be gone.
func (p *Process) Terminate(reason string) {
	select {
	case <-p.done:
		return
	default:
	}
	slog.Warn(reason + ", killing " + p.name)
	p.killed.Store(true)
	if err := killGroup(p.cmd.Process); err != nil && !errors.Is(err, errProcessDone) {
		slog.Error(fmt.Sprintf("failed to kill %s", p.name), "pid", p.Pid(), "err", err)
	}
}

// Run runs cmd to completion in cargo-fixture's own process group with
// whatever stdio the caller configured. A normal exit returns its code; a
// failure to start or a death by signal returns a *ProcessError.
func Run(cmd *exec.Cmd, name string) (int, error) {
	err := cmd.Run()
	return exitResult(name, cmd.ProcessState, err)
}
