package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrHangup is returned by a call whose peer closed the connection
	// before answering.
	ErrHangup = errors.New("cargo fixture socket unexpectedly hung up")

	// ErrNotRunning is returned when EnvSocket is unset, i.e. the process
	// was not started by cargo-fixture.
	ErrNotRunning = errors.New("could not connect: " + EnvSocket + " not set; cargo fixture not running?")

	// ErrInvalidSetEnv rejects an environment assignment with an empty name,
	// a name containing '=' or NUL, or a value containing NUL.
	ErrInvalidSetEnv = errors.New("invalid key or value while attempting to set environment variable")
)

// MissingKeyError reports a KV lookup for a key that was never set.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no value set for key `%s`", e.Key)
}

// ResponseMismatchError reports a well-formed response of the wrong kind.
type ResponseMismatchError struct {
	Want MessageType
	Got  Response
}

func (e *ResponseMismatchError) Error() string {
	got := MessageType("<nil>")
	if e.Got != nil {
		got = e.Got.Type()
	}
	return fmt.Sprintf("unexpected RPC response %s, expected %s", got, e.Want)
}

// VersionMismatchError reports a Hello carrying an incompatible major
// version.
type VersionMismatchError struct {
	Ours   uint32
	Theirs uint32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("this cargo-fixture binary version (%d.x.y) is not compatible with the library linked by test code (%d.x.y)",
		e.Ours, e.Theirs)
}

// UnexpectedMessageError reports a request that is not allowed in the
// receiver's current state.
type UnexpectedMessageError struct {
	Got     MessageType
	Context string
}

func (e *UnexpectedMessageError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("unexpected %s message", e.Got)
	}
	return fmt.Sprintf("unexpected %s message (%s)", e.Got, e.Context)
}

// FrameError reports a line that is not a valid message. The connection is
// unusable afterwards.
type FrameError struct {
	Line string
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed message %q: %v", e.Line, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
