package main

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/internal/logger"
	"cargo-fixture/pkg/cargo"
	"cargo-fixture/pkg/interrupt"
	"cargo-fixture/pkg/server"
	"cargo-fixture/pkg/supervisor"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by cargo-fixture itself.
const (
	envCargo     = "CARGO"
	envLogLevel  = "CARGO_FIXTURE_LOG"
	envSocketDir = "CARGO_FIXTURE_SOCKET_DIR"
)

// configNames are the project config files looked up in the working
// directory, in order.
var configNames = []string{".cargo-fixture.toml", ".cargo-fixture.yaml", ".cargo-fixture.yml"}

// fileConfig is the project config file. Durations use Go syntax ("10s").
type fileConfig struct {
	Fixture          string   `toml:"fixture" yaml:"fixture"`
	Args             []string `toml:"args" yaml:"args"`
	LogLevel         string   `toml:"log_level" yaml:"log_level"`
	StallInterval    string   `toml:"stall_interval" yaml:"stall_interval"`
	InterruptWindow  string   `toml:"interrupt_window" yaml:"interrupt_window"`
	HandshakeTimeout string   `toml:"handshake_timeout" yaml:"handshake_timeout"`
	SocketDir        string   `toml:"socket_dir" yaml:"socket_dir"`
}

// settings is the resolved configuration of one run.
type settings struct {
	inv              cargo.Invocation
	logLevel         slog.Level
	stallInterval    time.Duration
	interruptWindow  time.Duration
	handshakeTimeout time.Duration
	socketDir        string
}

// findConfig returns the config file to load: explicit if given, else the
// first of configNames present in dir, else "".
func findConfig(dir, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", ferrors.Wrapf(err, ferrors.KindConfig, "stat %s", path)
		}
	}
	return "", nil
}

// loadConfigFile parses path as TOML or YAML depending on its extension.
// Unknown keys are an error.
func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindConfig, "read config %s", path)
	}

	var cfg fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			// Empty document.
			err = nil
		}
	default:
		return nil, ferrors.Errorf(ferrors.KindConfig, "config %s: unsupported format %q (want .toml, .yaml or .yml)", path, ext)
	}
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindConfig, "parse config %s", path)
	}
	return &cfg, nil
}

// resolve merges command line, environment and config file into settings.
// Command line wins over environment, which wins over the file.
func resolve(opts *options, file *fileConfig, getenv func(string) string) (*settings, error) {
	if file == nil {
		file = &fileConfig{}
	}
	s := &settings{
		stallInterval:    supervisor.DefaultStallInterval,
		interruptWindow:  interrupt.DefaultWindow,
		handshakeTimeout: server.DefaultHandshakeTimeout,
	}

	level := first(opts.logLevel, getenv(envLogLevel), file.LogLevel)
	lv, err := logger.ParseLevel(level)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindConfig, "log level")
	}
	s.logLevel = lv

	for _, d := range []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"stall_interval", file.StallInterval, &s.stallInterval},
		{"interrupt_window", file.InterruptWindow, &s.interruptWindow},
		{"handshake_timeout", file.HandshakeTimeout, &s.handshakeTimeout},
	} {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, ferrors.Wrapf(err, ferrors.KindConfig, "config %s", d.key)
		}
		if v < 0 {
			return nil, ferrors.Errorf(ferrors.KindConfig, "config %s: must not be negative", d.key)
		}
		*d.dst = v
	}

	s.socketDir = first(getenv(envSocketDir), file.SocketDir)

	if opts.execSet && len(opts.exec) == 0 {
		return nil, ferrors.New(ferrors.KindConfig, "--exec needs a command to run")
	}

	fixtureArgs := opts.fixtureArgs
	if len(fixtureArgs) == 0 {
		fixtureArgs = file.Args
	}
	s.inv = cargo.Invocation{
		Cargo:       first(getenv(envCargo), "cargo"),
		Fixture:     first(opts.fixture, file.Fixture, cargo.DefaultFixture),
		FixtureArgs: fixtureArgs,
		CommonAll:   opts.commonAll,
		CommonTest:  opts.commonTest,
		TestArgs:    opts.testArgs,
		HarnessArgs: opts.harnessArgs,
		Exec:        opts.exec,
	}
	return s, nil
}

// first returns the first non-empty string.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
