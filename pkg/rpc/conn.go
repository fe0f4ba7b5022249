// Package rpc implements the line-oriented request/response channel shared by
// cargo-fixture and the programs it launches.
package rpc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/internal/logger"
	"cargo-fixture/pkg/protocol"
)

// Conn is one end of a protocol connection. A Conn allows at most one call
// in flight; callers sharing a Conn must serialize their use of it.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	log  *slog.Logger

	mu     sync.Mutex
	broken bool
}

// New wraps an established connection. A nil logger means slog.Default().
func New(conn net.Conn, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{
		conn: conn,
		r:    bufio.NewReader(conn),
		log:  log,
	}
}

// Logger returns the logger frames are traced to.
func (c *Conn) Logger() *slog.Logger {
	return c.log
}

// WithLogger replaces the logger, typically to attach connection attributes
// once the peer's role is known.
func (c *Conn) WithLogger(log *slog.Logger) {
	c.log = log
}

// Send writes m as a single line.
func (c *Conn) Send(m protocol.Message) error {
	line, err := protocol.Encode(m)
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindProtocol, "encode message")
	}
	c.log.Log(context.Background(), logger.LevelTrace, "send", "frame", string(line[:len(line)-1]))

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write(line); err != nil {
		return ferrors.Wrap(err, ferrors.KindTransport, "write to cargo fixture socket")
	}
	return nil
}

// readLine returns the next line without its terminator. An orderly
// shutdown before any byte of a new line yields io.EOF; a shutdown in the
// middle of a line is io.ErrUnexpectedEOF.
func (c *Conn) readLine() ([]byte, error) {
	c.mu.Lock()
	broken := c.broken
	c.mu.Unlock()
	if broken {
		return nil, ferrors.New(ferrors.KindProtocol, "connection unusable after malformed message")
	}

	line, err := c.r.ReadBytes('\n')
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && len(line) == 0:
		return nil, io.EOF
	case errors.Is(err, io.EOF):
		return nil, ferrors.Wrap(io.ErrUnexpectedEOF, ferrors.KindTransport, "read from cargo fixture socket")
	default:
		return nil, ferrors.Wrap(err, ferrors.KindTransport, "read from cargo fixture socket")
	}
	c.log.Log(context.Background(), logger.LevelTrace, "recv", "frame", string(line[:len(line)-1]))
	return line, nil
}

func (c *Conn) frameFailed(err error) error {
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()
	return ferrors.Wrap(err, ferrors.KindProtocol, "decode message")
}

// RecvRequest reads one request. It returns io.EOF, unwrapped, when the peer
// closed the connection cleanly between messages.
func (c *Conn) RecvRequest() (protocol.Request, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	req, err := protocol.DecodeRequest(line)
	if err != nil {
		return nil, c.frameFailed(err)
	}
	return req, nil
}

// RecvResponse reads one response, with the same EOF contract as
// RecvRequest.
func (c *Conn) RecvResponse() (protocol.Response, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	resp, err := protocol.DecodeResponse(line)
	if err != nil {
		return nil, c.frameFailed(err)
	}
	return resp, nil
}

// Call sends req and waits for exactly one response. A peer that hangs up
// instead of answering yields protocol.ErrHangup.
func (c *Conn) Call(req protocol.Request) (protocol.Response, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}
	resp, err := c.RecvResponse()
	if errors.Is(err, io.EOF) {
		return nil, ferrors.Wrapf(protocol.ErrHangup, ferrors.KindTransport, "awaiting reply to %s", req.Type())
	}
	return resp, err
}

// SetReadDeadline bounds the next reads. The zero time clears it.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
