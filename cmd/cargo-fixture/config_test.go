package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/internal/logger"
	"cargo-fixture/pkg/interrupt"
	"cargo-fixture/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	want := &fileConfig{
		Fixture:          "db",
		Args:             []string{"--port", "5432"},
		LogLevel:         "debug",
		StallInterval:    "30s",
		InterruptWindow:  "1s",
		HandshakeTimeout: "2s",
		SocketDir:        "/tmp/sockets",
	}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", ".cargo-fixture.toml", `
fixture = "db"
args = ["--port", "5432"]
log_level = "debug"
stall_interval = "30s"
interrupt_window = "1s"
handshake_timeout = "2s"
socket_dir = "/tmp/sockets"
`},
		{"yaml", ".cargo-fixture.yaml", `
fixture: db
args: ["--port", "5432"]
log_level: debug
stall_interval: 30s
interrupt_window: 1s
handshake_timeout: 2s
socket_dir: /tmp/sockets
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			got, err := loadConfigFile(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	tests := map[string]string{
		"config.toml": "fixtur = \"db\"\n",
		"config.yml":  "fixtur: db\n",
		"config.json": "{}",
		"broken.toml": "fixture = [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), name, content)
			_, err := loadConfigFile(path)
			require.Error(t, err)
			assert.Equal(t, ferrors.KindConfig, ferrors.GetKind(err))
		})
	}
}

func TestLoadConfigFileEmptyYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")
	got, err := loadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, &fileConfig{}, got)
}

func TestFindConfig(t *testing.T) {
	dir := t.TempDir()

	got, err := findConfig(dir, "")
	require.NoError(t, err)
	assert.Empty(t, got, "no config file present")

	yml := writeFile(t, dir, ".cargo-fixture.yml", "")
	got, err = findConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, yml, got)

	toml := writeFile(t, dir, ".cargo-fixture.toml", "")
	got, err = findConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, toml, got, "toml is preferred")

	got, err = findConfig(dir, "/elsewhere/custom.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/custom.yaml", got)
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveDefaults(t *testing.T) {
	s, err := resolve(&options{}, nil, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "cargo", s.inv.Cargo)
	assert.Equal(t, "fixture", s.inv.Fixture)
	assert.Equal(t, slog.LevelInfo, s.logLevel)
	assert.Equal(t, interrupt.DefaultWindow, s.interruptWindow)
	assert.Equal(t, server.DefaultHandshakeTimeout, s.handshakeTimeout)
	assert.Equal(t, 10*time.Second, s.stallInterval)
	assert.Empty(t, s.socketDir)
}

func TestResolvePrecedence(t *testing.T) {
	file := &fileConfig{
		Fixture:       "from-file",
		Args:          []string{"file-arg"},
		LogLevel:      "off",
		StallInterval: "1m",
		SocketDir:     "/file/dir",
	}
	env := envMap(map[string]string{
		envCargo:     "/opt/cargo",
		envLogLevel:  "debug",
		envSocketDir: "/env/dir",
	})

	s, err := resolve(&options{}, file, env)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cargo", s.inv.Cargo)
	assert.Equal(t, "from-file", s.inv.Fixture)
	assert.Equal(t, []string{"file-arg"}, s.inv.FixtureArgs)
	assert.Equal(t, slog.LevelDebug, s.logLevel, "env beats file")
	assert.Equal(t, time.Minute, s.stallInterval)
	assert.Equal(t, "/env/dir", s.socketDir, "env beats file")

	opts := &options{fixture: "from-flag", fixtureArgs: []string{"flag-arg"}, logLevel: "trace"}
	s, err = resolve(opts, file, env)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", s.inv.Fixture)
	assert.Equal(t, []string{"flag-arg"}, s.inv.FixtureArgs)
	assert.Equal(t, logger.LevelTrace, s.logLevel, "flag beats env")
}

func TestResolveCarriesCommandLine(t *testing.T) {
	opts := &options{
		testArgs:    []string{"smoke"},
		harnessArgs: []string{"--nocapture"},
		exec:        []string{"make", "check"},
		execSet:     true,
		commonAll:   []string{"--offline"},
		commonTest:  []string{"--release"},
	}
	s, err := resolve(opts, nil, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"smoke"}, s.inv.TestArgs)
	assert.Equal(t, []string{"--nocapture"}, s.inv.HarnessArgs)
	assert.Equal(t, []string{"make", "check"}, s.inv.Exec)
	assert.Equal(t, []string{"--offline"}, s.inv.CommonAll)
	assert.Equal(t, []string{"--release"}, s.inv.CommonTest)
}

func TestResolveErrors(t *testing.T) {
	tests := map[string]struct {
		opts *options
		file *fileConfig
	}{
		"bad log level":        {&options{logLevel: "loud"}, nil},
		"bad duration":         {&options{}, &fileConfig{StallInterval: "soon"}},
		"negative duration":    {&options{}, &fileConfig{HandshakeTimeout: "-1s"}},
		"exec without command": {&options{execSet: true}, nil},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := resolve(tt.opts, tt.file, envMap(nil))
			require.Error(t, err)
			assert.Equal(t, ferrors.KindConfig, ferrors.GetKind(err))
		})
	}
}
