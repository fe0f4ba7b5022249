package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/internal/logger"
	"cargo-fixture/pkg/protocol"
	"cargo-fixture/pkg/rpc"
)

// DefaultHandshakeTimeout bounds how long an accepted connection may take
// to say Hello.
const DefaultHandshakeTimeout = 10 * time.Second

// Listener is the rendezvous socket. Every connection it yields has
// completed the handshake. Close removes the socket file.
type Listener struct {
	path    string
	ln      net.Listener
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Accepted is a connection that completed the handshake.
type Accepted struct {
	Conn *rpc.Conn
	Role protocol.Role
	// ID is a short random identifier used in log lines.
	ID string
}

// Listen binds the socket at path. A leftover socket file nobody listens on
// is removed first; a live listener at path is an error.
func Listen(path string, handshakeTimeout time.Duration) (*Listener, error) {
	if err := cleanStaleSocket(path); err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindConfig, "prepare socket")
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindConfig, "could not create a socket at %s", path)
	}
	logger.Trace("accepting connections", "path", path)
	return &Listener{path: path, ln: ln, timeout: handshakeTimeout}, nil
}

// Path is the filesystem path of the socket.
func (l *Listener) Path() string {
	return l.path
}

// Accept waits for the next connection and performs the handshake. A
// handshake failure closes the connection and is returned as a
// *HandshakeError; any other error means the listener is unusable.
func (l *Listener) Accept() (*Accepted, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindTransport, "error accepting connection")
	}

	id := uuid.NewString()[:8]
	c := rpc.New(nc, slog.With("conn", id))
	logger.Trace("connection accepted, performing handshake...", "conn", id)

	role, err := rpc.Handshake(c, l.timeout)
	if err != nil {
		_ = c.Close()
		return nil, &HandshakeError{ID: id, Err: err}
	}
	c.WithLogger(c.Logger().With("role", string(role)))
	logger.Trace("connection handshake ok", "conn", id, "role", string(role))
	return &Accepted{Conn: c, Role: role, ID: id}, nil
}

// Close stops accepting and removes the socket file. It is safe to call
// more than once and from several goroutines.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
		logger.Trace("removing socket", "path", l.path)
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn(fmt.Sprintf("could not remove file `%s`", l.path), "err", err)
		}
	})
	return l.closeErr
}

// HandshakeError reports a connection that failed the handshake. The
// listener itself is still usable.
type HandshakeError struct {
	ID  string
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("connection %s: handshake failed: %v", e.ID, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// cleanStaleSocket checks whether a socket file at socketPath is stale
// (left over from a crashed run) or actively in use.
//
//   - If the file does not exist, returns nil.
//   - If a connection to it succeeds, someone is listening: returns an error
//     so the caller does not clobber it.
//   - If the connection fails, the file is stale and is removed.
func cleanStaleSocket(socketPath string) error {
	_, err := os.Stat(socketPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat socket %s: %w", socketPath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var d net.Dialer
	conn, dialErr := d.DialContext(ctx, "unix", socketPath)
	if dialErr == nil {
		_ = conn.Close()
		return fmt.Errorf("another cargo-fixture is already listening on %s", socketPath)
	}

	slog.Debug("removing stale socket", "path", socketPath)
	if err := os.Remove(socketPath); err != nil {
		return fmt.Errorf("remove stale socket %s: %w", socketPath, err)
	}
	return nil
}
