package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/internal/logger"
	"cargo-fixture/pkg/cargo"
	"cargo-fixture/pkg/protocol"
	"cargo-fixture/pkg/rpc"
	"cargo-fixture/pkg/supervisor"
)

// ErrNeverReady is returned when the fixture hangs up without calling Ready.
var ErrNeverReady = errors.New("fixture program never called ready, tests not run")

// State is the phase a fixture session is in.
type State int

const (
	// StateActive accepts configuration requests.
	StateActive State = iota
	// StateLaunching resolves the test command after Ready.
	StateLaunching
	// StateRunning waits for the test command.
	StateRunning
	// StateReporting sends TestsFinished to the fixture.
	StateReporting
	// StateDone is final.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// FixtureSession serves the fixture connection: it collects the test-run
// configuration and, on Ready, runs the tests.
type FixtureSession struct {
	conn  *rpc.Conn
	kv    *KVStore
	inv   *cargo.Invocation
	log   *slog.Logger
	state State

	env              []string
	extraTestArgs    []string
	extraHarnessArgs []string
	exec             []string

	// run starts the test command; replaced in tests.
	run func(cmd *exec.Cmd) (int, error)
}

func newFixtureSession(conn *rpc.Conn, kv *KVStore, inv *cargo.Invocation) *FixtureSession {
	return &FixtureSession{
		conn: conn,
		kv:   kv,
		inv:  inv,
		log:  conn.Logger(),
		run: func(cmd *exec.Cmd) (int, error) {
			return supervisor.Run(cmd, "test command")
		},
	}
}

// State reports the current phase. It is only meaningful on the goroutine
// running Run.
func (f *FixtureSession) State() State {
	return f.state
}

// Run serves requests until Ready, then runs the test command with
// inherited stdio and returns its exit code. A test command that could not
// be started or was killed by a signal yields a *supervisor.ProcessError;
// any protocol failure is fatal and returned as is. The connection is
// closed on return.
func (f *FixtureSession) Run(ctx context.Context) (int, error) {
	defer f.conn.Close()
	defer f.setState(StateDone)

	for {
		req, err := f.conn.RecvRequest()
		if errors.Is(err, io.EOF) {
			return 0, ferrors.Wrap(ErrNeverReady, ferrors.KindProtocol, "fixture connection")
		}
		if err != nil {
			return 0, err
		}

		var resp protocol.Response
		switch r := req.(type) {
		case protocol.SetEnv:
			if err := protocol.ValidateSetEnv(r.Name, r.Value); err != nil {
				return 0, ferrors.Wrapf(err, ferrors.KindValidation, "SetEnv %q", r.Name)
			}
			f.log.Debug("setting env var " + r.Name + "=" + r.Value)
			f.env = append(f.env, r.Name+"="+r.Value)
			resp = protocol.Ok{}
		case protocol.SetKeyValue:
			f.log.Debug("storing KV data", "key", r.Key)
			f.kv.Set(r.Key, r.Value)
			resp = protocol.Ok{}
		case protocol.GetKeyValue:
			resp = f.kv.reply(r.Key)
		case protocol.SetExtraTestArgs:
			f.log.Debug("setting extra cargo test args", "args", r.Args)
			f.extraTestArgs = r.Args
			resp = protocol.Ok{}
		case protocol.SetExtraHarnessArgs:
			f.log.Debug("setting extra test binary args", "args", r.Args)
			f.extraHarnessArgs = r.Args
			resp = protocol.Ok{}
		case protocol.SetExec:
			f.logSetExec(r.Exec)
			f.exec = r.Exec
			resp = protocol.Ok{}
		case protocol.Ready:
			return f.runTests(ctx)
		case protocol.Hello:
			return 0, ferrors.Wrap(&protocol.UnexpectedMessageError{Got: req.Type(), Context: "already connected"},
				ferrors.KindProtocol, "fixture connection")
		default:
			return 0, ferrors.Wrap(&protocol.UnexpectedMessageError{Got: req.Type()},
				ferrors.KindProtocol, "fixture connection")
		}

		if err := f.conn.Send(resp); err != nil {
			return 0, err
		}
	}
}

func (f *FixtureSession) logSetExec(argv []string) {
	switch {
	case len(argv) == 0:
		f.log.Debug("resetting test command to default cargo test invocation")
	case len(f.inv.Exec) > 0:
		f.log.Debug("test command set by fixture is overridden by the -x command line flag", "exec", argv)
	default:
		f.log.Debug("setting test command", "exec", argv)
	}
}

// takeOverrides hands over the collected configuration and resets it.
func (f *FixtureSession) takeOverrides() cargo.Overrides {
	ov := cargo.Overrides{
		Env:              f.env,
		ExtraTestArgs:    f.extraTestArgs,
		ExtraHarnessArgs: f.extraHarnessArgs,
		Exec:             f.exec,
	}
	f.env, f.extraTestArgs, f.extraHarnessArgs, f.exec = nil, nil, nil, nil
	return ov
}

func (f *FixtureSession) runTests(ctx context.Context) (int, error) {
	f.setState(StateLaunching)
	if f.log.Enabled(ctx, logger.LevelTrace) {
		snap := f.kv.Snapshot()
		f.log.Log(ctx, logger.LevelTrace, "KV storage", "keys", len(snap))
		for k, v := range snap {
			f.log.Log(ctx, logger.LevelTrace, "KV entry", "key", k, "value", string(v))
		}
	}

	cmd := f.inv.TestCmd(ctx, f.takeOverrides())
	slog.Info("running " + cargo.Display(cmd.Args))

	f.setState(StateRunning)
	code, runErr := f.run(cmd)
	f.log.Debug("test command finished", "code", code, "err", runErr)

	f.setState(StateReporting)
	success := runErr == nil && code == 0
	if err := f.conn.Send(protocol.TestsFinished{Success: success}); err != nil {
		// The run's outcome still stands; a fixture that went away is
		// accounted for when its process exits.
		f.log.Warn("could not report test result to fixture", "err", err)
	}

	if runErr != nil {
		return 0, runErr
	}
	return code, nil
}

func (f *FixtureSession) setState(s State) {
	if f.state != s {
		f.log.Debug("fixture session", "state", s.String())
		f.state = s
	}
}
