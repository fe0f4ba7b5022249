package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/pkg/protocol"
)

// Dial connects to the cargo-fixture socket at path and performs the client
// side of the handshake, announcing role.
func Dial(ctx context.Context, path string, role protocol.Role) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindTransport, "could not connect to cargo fixture socket %s", path)
	}
	c := New(nc, nil)

	if deadline, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(deadline)
	}
	resp, err := c.Call(protocol.Hello{Version: protocol.MajorVersion, Role: role})
	if err == nil {
		err = protocol.AsOk(resp)
	}
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("cargo fixture handshake: %w", err)
	}
	_ = nc.SetDeadline(time.Time{})
	return c, nil
}

// DialEnv is Dial with the socket path taken from the environment. It
// returns protocol.ErrNotRunning when the variable is unset.
func DialEnv(ctx context.Context, role protocol.Role) (*Conn, error) {
	path, ok := os.LookupEnv(protocol.EnvSocket)
	if !ok || path == "" {
		return nil, ferrors.Wrap(protocol.ErrNotRunning, ferrors.KindConfig, "dial")
	}
	return Dial(ctx, path, role)
}

// Handshake performs the accepting side of the handshake: the first message
// must be a Hello with a compatible major version, answered with Ok. The
// read is bounded by timeout when it is positive.
func Handshake(c *Conn, timeout time.Duration) (protocol.Role, error) {
	if timeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(timeout))
		defer func() { _ = c.SetReadDeadline(time.Time{}) }()
	}

	req, err := c.RecvRequest()
	if errors.Is(err, io.EOF) {
		return "", ferrors.Wrap(protocol.ErrHangup, ferrors.KindTransport, "awaiting hello")
	}
	if err != nil {
		return "", err
	}

	hello, ok := req.(protocol.Hello)
	if !ok {
		return "", ferrors.Wrap(
			&protocol.UnexpectedMessageError{Got: req.Type(), Context: "expected Hello"},
			ferrors.KindProtocol, "handshake")
	}
	if hello.Version != protocol.MajorVersion {
		return "", ferrors.Wrap(
			&protocol.VersionMismatchError{Ours: protocol.MajorVersion, Theirs: hello.Version},
			ferrors.KindProtocol, "handshake")
	}

	if err := c.Send(protocol.Ok{}); err != nil {
		return "", err
	}
	return hello.Role, nil
}
