// Package logger configures the process-wide slog logger used by
// cargo-fixture. Records are written to stderr in the form
//
//	cargo-fixture: message key=value
//	cargo-fixture DEBUG: message key=value
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Extra levels on top of slog's built-in ones.
const (
	LevelTrace = slog.Level(-8)
	LevelOff   = slog.Level(100)
)

// Prefix is prepended to every log line.
const Prefix = "cargo-fixture"

// ParseLevel maps off/info/debug/trace (case-insensitive) to a slog level.
// warn and error are accepted as well.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "off":
		return LevelOff, nil
	case "debug":
		return slog.LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (choices: off, info, debug, trace)", s)
	}
}

// Init installs a PrettyHandler writing to w as the default slog logger.
// Colour is enabled when w is a terminal.
func Init(level slog.Level, w io.Writer) {
	slog.SetDefault(slog.New(NewPrettyHandler(w, level, isTerminal(w))))
}

// Trace logs at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	slog.Default().Log(context.Background(), LevelTrace, msg, args...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
