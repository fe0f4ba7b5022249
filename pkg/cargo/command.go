// Package cargo builds the cargo invocations cargo-fixture runs and reads
// cargo's machine-readable output.
package cargo

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"cargo-fixture/pkg/protocol"
)

// DefaultFixture is the name of the fixture test target when none is given.
const DefaultFixture = "fixture"

// Invocation is everything cargo-fixture was asked to do on its command
// line, turned into the commands it runs.
type Invocation struct {
	// Cargo is the cargo executable.
	Cargo string
	// Fixture is the name of the fixture test target.
	Fixture string
	// FixtureArgs are passed to the fixture binary.
	FixtureArgs []string
	// CommonAll are cargo flags forwarded to every cargo command.
	CommonAll []string
	// CommonTest are cargo flags forwarded to every `cargo test` command.
	CommonTest []string
	// TestArgs are the remaining arguments for the default `cargo test`.
	TestArgs []string
	// HarnessArgs are passed to the test binaries after `--`.
	HarnessArgs []string
	// Exec replaces the test command entirely when non-empty.
	Exec []string
	// SocketPath is exported to every child as CARGO_FIXTURE_SOCKET.
	SocketPath string
}

// Overrides are the test-run settings a fixture collected before Ready.
type Overrides struct {
	// Env holds NAME=VALUE assignments applied on top of the inherited
	// environment.
	Env              []string
	ExtraTestArgs    []string
	ExtraHarnessArgs []string
	Exec             []string
}

// BuildArgv is the argv building the fixture target without running it.
func (inv *Invocation) BuildArgv() []string {
	argv := []string{inv.Cargo, "test"}
	argv = append(argv, inv.CommonAll...)
	argv = append(argv, inv.CommonTest...)
	return append(argv,
		"--test", inv.Fixture,
		"--no-run",
		"--features", protocol.FixtureFeature,
		"--message-format=json-render-diagnostics",
	)
}

// BuildCmd returns the fixture build command with stdin detached and
// diagnostics on stderr. The caller owns stdout.
func (inv *Invocation) BuildCmd(ctx context.Context) *exec.Cmd {
	argv := inv.BuildArgv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator
	cmd.Stderr = os.Stderr
	return cmd
}

// FixtureCmd returns the command running the built fixture binary exe. It
// is not tied to a context: the fixture is only ever killed explicitly.
func (inv *Invocation) FixtureCmd(exe string) *exec.Cmd {
	cmd := exec.Command(exe, inv.FixtureArgs...) //nolint:gosec,noctx // fixture binary was just built by cargo
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), protocol.EnvSocket+"="+inv.SocketPath)
	return cmd
}

// TestArgv resolves the test command. An Exec given on the command line
// wins over one set by the fixture, which wins over the default
// `cargo test` invocation.
func (inv *Invocation) TestArgv(ov Overrides) []string {
	switch {
	case len(inv.Exec) > 0:
		return append([]string(nil), inv.Exec...)
	case len(ov.Exec) > 0:
		return append([]string(nil), ov.Exec...)
	}

	argv := []string{inv.Cargo, "test", "--features", protocol.FixtureFeature}
	argv = append(argv, inv.CommonAll...)
	argv = append(argv, inv.CommonTest...)
	argv = append(argv, inv.TestArgs...)
	argv = append(argv, ov.ExtraTestArgs...)
	argv = append(argv, "--")
	argv = append(argv, inv.HarnessArgs...)
	return append(argv, ov.ExtraHarnessArgs...)
}

// TestCmd returns the resolved test command with inherited stdio, the
// fixture's environment overlay and the socket path.
func (inv *Invocation) TestCmd(ctx context.Context, ov Overrides) *exec.Cmd {
	argv := inv.TestArgv(ov)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator or the fixture
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	env := append(os.Environ(), ov.Env...)
	cmd.Env = append(env, protocol.EnvSocket+"="+inv.SocketPath)
	return cmd
}

// Display renders argv the way it would be typed.
func Display(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\$") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
