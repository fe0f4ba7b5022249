package protocol_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"cargo-fixture/pkg/protocol"
)

func TestVersionMismatchError(t *testing.T) {
	err := error(&protocol.VersionMismatchError{Ours: 1, Theirs: 2})

	var target *protocol.VersionMismatchError
	if !errors.As(err, &target) {
		t.Fatal("errors.As failed to extract VersionMismatchError")
	}
	if target.Theirs != 2 {
		t.Errorf("expected Theirs 2, got %d", target.Theirs)
	}
	msg := err.Error()
	if !strings.Contains(msg, "(1.x.y)") || !strings.Contains(msg, "(2.x.y)") {
		t.Errorf("message should name both versions: %q", msg)
	}
}

func TestFrameErrorUnwrap(t *testing.T) {
	err := error(&protocol.FrameError{Line: "{", Err: io.ErrUnexpectedEOF})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("FrameError should unwrap to its cause")
	}
}

func TestUnexpectedMessageError(t *testing.T) {
	tests := []struct {
		err  *protocol.UnexpectedMessageError
		want string
	}{
		{&protocol.UnexpectedMessageError{Got: protocol.MsgReady}, "unexpected Ready message"},
		{
			&protocol.UnexpectedMessageError{Got: protocol.MsgSetEnv, Context: "test connections are read-only"},
			"unexpected SetEnv message (test connections are read-only)",
		},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestResponseMismatchNilGot(t *testing.T) {
	err := &protocol.ResponseMismatchError{Want: protocol.MsgOk}
	if !strings.Contains(err.Error(), "<nil>") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
