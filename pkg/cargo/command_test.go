package cargo_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargo-fixture/pkg/cargo"
	"cargo-fixture/pkg/protocol"
)

func newInvocation() *cargo.Invocation {
	return &cargo.Invocation{
		Cargo:       "cargo",
		Fixture:     "fixture",
		FixtureArgs: []string{"--verbose-fixture"},
		CommonAll:   []string{"--manifest-path", "sub/Cargo.toml"},
		CommonTest:  []string{"--release"},
		TestArgs:    []string{"smoke"},
		HarnessArgs: []string{"--nocapture"},
		SocketPath:  "/tmp/target/.cargo-fixture-1.sock",
	}
}

func TestBuildArgv(t *testing.T) {
	inv := newInvocation()

	assert.Equal(t, []string{
		"cargo", "test", "--manifest-path", "sub/Cargo.toml", "--release",
		"--test", "fixture", "--no-run", "--features", "_fixture",
		"--message-format=json-render-diagnostics",
	}, inv.BuildArgv())
}

func TestTestArgvPrecedence(t *testing.T) {
	defaultArgv := []string{
		"cargo", "test", "--features", "_fixture",
		"--manifest-path", "sub/Cargo.toml", "--release", "smoke", "--extra",
		"--", "--nocapture", "--test-threads=1",
	}

	tests := []struct {
		name    string
		cliExec []string
		ov      cargo.Overrides
		want    []string
	}{
		{
			name: "default cargo test",
			ov:   cargo.Overrides{ExtraTestArgs: []string{"--extra"}, ExtraHarnessArgs: []string{"--test-threads=1"}},
			want: defaultArgv,
		},
		{
			name: "fixture exec used verbatim",
			ov:   cargo.Overrides{Exec: []string{"make", "check"}, ExtraTestArgs: []string{"--ignored"}},
			want: []string{"make", "check"},
		},
		{
			name:    "cli exec wins over fixture exec",
			cliExec: []string{"just", "test"},
			ov:      cargo.Overrides{Exec: []string{"make", "check"}},
			want:    []string{"just", "test"},
		},
		{
			name:    "cli exec alone",
			cliExec: []string{"./run.sh"},
			want:    []string{"./run.sh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newInvocation()
			inv.Exec = tt.cliExec
			assert.Equal(t, tt.want, inv.TestArgv(tt.ov))
		})
	}
}

func TestTestArgvEmptyExecMeansDefault(t *testing.T) {
	inv := newInvocation()
	argv := inv.TestArgv(cargo.Overrides{Exec: []string{}})
	assert.Equal(t, "cargo", argv[0])
	assert.Contains(t, argv, "--")
}

func TestTestArgvDoesNotAlias(t *testing.T) {
	inv := newInvocation()
	inv.Exec = []string{"a", "b"}
	argv := inv.TestArgv(cargo.Overrides{})
	argv[0] = "mutated"
	assert.Equal(t, "a", inv.Exec[0])
}

func TestTestCmdEnvironment(t *testing.T) {
	inv := newInvocation()
	cmd := inv.TestCmd(context.Background(), cargo.Overrides{Env: []string{"DB_URL=postgres://x"}})

	assert.Contains(t, cmd.Env, "DB_URL=postgres://x")
	assert.Equal(t, protocol.EnvSocket+"="+inv.SocketPath, cmd.Env[len(cmd.Env)-1])
}

func TestFixtureCmd(t *testing.T) {
	inv := newInvocation()
	cmd := inv.FixtureCmd("/target/debug/deps/fixture-abc")

	assert.Equal(t, []string{"/target/debug/deps/fixture-abc", "--verbose-fixture"}, cmd.Args)
	assert.True(t, slices.Contains(cmd.Env, protocol.EnvSocket+"="+inv.SocketPath))
}

func TestMetadataArgv(t *testing.T) {
	inv := newInvocation()
	assert.Equal(t, []string{
		"cargo", "metadata", "--manifest-path", "sub/Cargo.toml",
		"--format-version", "1", "--no-deps",
	}, inv.MetadataArgv())
}

func TestDisplay(t *testing.T) {
	require.Equal(t, `cargo test -- 'a b' '' 'it'\''s'`, cargo.Display([]string{"cargo", "test", "--", "a b", "", "it's"}))
}
