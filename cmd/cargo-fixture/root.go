package main

import (
	"fmt"
	"strings"

	"cargo-fixture/internal/appversion"
	"cargo-fixture/pkg/cargo"
	"cargo-fixture/pkg/protocol"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// forwardScope says which cargo commands a forwarded flag is passed to.
type forwardScope int

const (
	// scopeAll flags go to every cargo command, `cargo metadata` included.
	scopeAll forwardScope = iota
	// scopeTest flags go to `cargo test` only.
	scopeTest
)

// forwardFlag is a cargo flag cargo-fixture accepts and passes through.
type forwardFlag struct {
	name      string
	shorthand string
	value     bool
	scope     forwardScope
	usage     string
	// shortOnly flags have no long form in cargo; name is only used to
	// register them.
	shortOnly bool
}

var forwardFlags = []forwardFlag{
	{"quiet", "q", false, scopeAll, "Do not print cargo log messages", false},
	{"verbose", "v", false, scopeAll, "Use verbose output", false},
	{"unstable-flag", "Z", true, scopeAll, "Unstable (nightly-only) flags to Cargo", true},
	{"color", "", true, scopeAll, "Coloring: auto, always, never", false},
	{"config", "", true, scopeAll, "Override a cargo configuration value (KEY=VALUE)", false},
	{"features", "F", true, scopeAll, "Space or comma separated list of features to activate", false},
	{"all-features", "", false, scopeAll, "Activate all available features", false},
	{"no-default-features", "", false, scopeAll, "Do not activate the `default` feature", false},
	{"manifest-path", "", true, scopeAll, "Path to Cargo.toml", false},
	{"frozen", "", false, scopeAll, "Require Cargo.lock and cache are up to date", false},
	{"locked", "", false, scopeAll, "Require Cargo.lock is up to date", false},
	{"offline", "", false, scopeAll, "Run without accessing the network", false},
	{"ignore-rust-version", "", false, scopeTest, "Ignore `rust-version` specification in packages", false},
	{"future-incompat-report", "", false, scopeTest, "Outputs a future incompatibility report at the end of the build", false},
	{"package", "p", true, scopeTest, "Package to run tests for", false},
	{"jobs", "j", true, scopeTest, "Number of parallel jobs, defaults to # of CPUs", false},
	{"release", "r", false, scopeTest, "Build artifacts in release mode, with optimizations", false},
	{"profile", "", true, scopeTest, "Build artifacts with the specified profile", false},
	{"target", "", true, scopeTest, "Build for the target triple", false},
	{"target-dir", "", true, scopeTest, "Directory for all generated artifacts", false},
	{"unit-graph", "", false, scopeTest, "Output build graph in JSON (unstable)", false},
	{"timings", "", true, scopeTest, "Timing output formats (unstable)", false},
}

// spelling is the form handed to cargo.
func (f forwardFlag) spelling() string {
	if f.shortOnly {
		return "-" + f.shorthand
	}
	return "--" + f.name
}

// options collects everything parsed from the command line.
type options struct {
	fixture     string
	fixtureArgs []string
	logLevel    string
	configFile  string

	// Filled in by splitArgs rather than cobra.
	testArgs    []string
	harnessArgs []string
	exec        []string
	execSet     bool

	commonAll  []string
	commonTest []string
}

// newRootCmd creates the cargo-fixture command. run receives the parsed
// options once flags are in place.
func newRootCmd(opts *options, run func(cmd *cobra.Command, opts *options) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cargo-fixture [OPTIONS] [TESTNAME] [CARGO TEST ARGS...] [-- HARNESS ARGS...]",
		Short: "Surround cargo test with a fixture",
		Long: "cargo fixture builds and starts the fixture test target, lets it prepare the\n" +
			"environment, runs cargo test and lets the fixture clean up afterwards.\n\n" +
			"Unrecognized flags and positional arguments are passed on to cargo test;\n" +
			"arguments after -- are passed to the test binaries.",
		Version:       fmt.Sprintf("cargo-fixture %s (protocol v%d)", appversion.String(), protocol.MajorVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.collectForwarded(cmd.Flags())
			return run(cmd, opts)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.SortFlags = false
	f.StringVar(&opts.fixture, "fixture", "", "Name of the fixture test target (default \""+cargo.DefaultFixture+"\")")
	f.StringArrayVarP(&opts.fixtureArgs, "arg", "A", nil, "Pass an argument to the fixture program (repeatable)")
	f.BoolVarP(&opts.execSet, "exec", "x", false, "Run the remaining arguments instead of cargo test")
	f.StringVarP(&opts.logLevel, "log-level", "L", "", "Log level: off, info, debug, trace")
	f.StringVar(&opts.configFile, "fixture-config", "", "Load settings from this file instead of .cargo-fixture.{toml,yaml,yml}")

	for _, ff := range forwardFlags {
		if ff.value {
			f.StringArrayP(ff.name, ff.shorthand, nil, ff.usage)
		} else {
			f.BoolP(ff.name, ff.shorthand, false, ff.usage)
		}
		if ff.shortOnly {
			_ = f.MarkHidden(ff.name)
		}
	}

	cmd.InitDefaultHelpFlag()
	cmd.InitDefaultVersionFlag()
	return cmd
}

// collectForwarded turns the forwarded cargo flags that were set back into
// cargo arguments, split by the commands they apply to.
func (o *options) collectForwarded(fs *pflag.FlagSet) {
	o.commonAll, o.commonTest = nil, nil
	for _, ff := range forwardFlags {
		fl := fs.Lookup(ff.name)
		if fl == nil || !fl.Changed {
			continue
		}
		var args []string
		if ff.value {
			values, _ := fs.GetStringArray(ff.name)
			for _, v := range values {
				args = append(args, ff.spelling(), v)
			}
		} else {
			args = []string{ff.spelling()}
		}
		if ff.scope == scopeAll {
			o.commonAll = append(o.commonAll, args...)
		} else {
			o.commonTest = append(o.commonTest, args...)
		}
	}
}

// splitArgs separates argv into what cobra parses and what is passed
// through. Flags cargo-fixture knows, with their values, stay for cobra.
// Everything else before `--` is kept in order as cargo test arguments,
// everything after it goes to the test binaries, and -x/--exec swallows the
// rest of the line.
func splitArgs(fs *pflag.FlagSet, argv []string, opts *options) []string {
	known := []string{}
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			opts.harnessArgs = append(opts.harnessArgs, argv[i+1:]...)
			return known
		case arg == "-x" || arg == "--exec":
			known = append(known, arg)
			opts.exec = append(opts.exec, argv[i+1:]...)
			return known
		case len(arg) < 2 || arg[0] != '-':
			opts.testArgs = append(opts.testArgs, arg)
			continue
		}

		fl, inline := lookupFlag(fs, arg)
		if fl == nil {
			opts.testArgs = append(opts.testArgs, arg)
			continue
		}
		known = append(known, arg)
		if takesValue(fl) && !inline && i+1 < len(argv) {
			i++
			known = append(known, argv[i])
		}
	}
	return known
}

// lookupFlag finds the flag arg refers to. inline reports whether its value
// is part of arg itself (--name=value, -jN).
func lookupFlag(fs *pflag.FlagSet, arg string) (fl *pflag.Flag, inline bool) {
	if strings.HasPrefix(arg, "--") {
		name, _, hasValue := strings.Cut(arg[2:], "=")
		return fs.Lookup(name), hasValue
	}
	fl = fs.ShorthandLookup(arg[1:2])
	if fl == nil {
		return nil, false
	}
	if len(arg) > 2 {
		if takesValue(fl) {
			return fl, true
		}
		// A cluster of boolean shorthands such as -rq.
		for j := 2; j < len(arg); j++ {
			next := fs.ShorthandLookup(arg[j : j+1])
			if next == nil || takesValue(next) {
				return nil, false
			}
		}
	}
	return fl, false
}

func takesValue(fl *pflag.Flag) bool {
	return fl.NoOptDefVal == ""
}
