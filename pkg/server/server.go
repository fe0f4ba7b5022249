// Package server is the orchestrator side of the cargo-fixture protocol:
// it accepts the fixture and test connections and serves their requests.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/pkg/cargo"
	"cargo-fixture/pkg/protocol"
)

// Server serves one cargo-fixture run: exactly one fixture connection,
// then any number of test connections, all sharing one KV store.
type Server struct {
	ln  *Listener
	kv  *KVStore
	inv *cargo.Invocation

	// pending tracks parallel test sessions still being served. It is only
	// added to and waited on from the accept loop.
	pending sync.WaitGroup
}

// New returns a server accepting on ln. inv resolves the test command when
// the fixture calls Ready.
func New(ln *Listener, inv *cargo.Invocation) *Server {
	return &Server{ln: ln, kv: NewKVStore(), inv: inv}
}

// KV returns the store shared by all sessions of the run.
func (s *Server) KV() *KVStore {
	return s.kv
}

// AcceptFixture waits for the first connection, which must be the
// fixture's.
func (s *Server) AcceptFixture() (*FixtureSession, error) {
	acc, err := s.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("fixture connection error: %w", err)
	}
	if acc.Role != protocol.RoleFixture {
		_ = acc.Conn.Close()
		return nil, ferrors.Errorf(ferrors.KindProtocol,
			"unexpected connection %s, expected fixture connection first", acc.Role)
	}
	acc.Conn.Logger().Debug("fixture connected")
	return newFixtureSession(acc.Conn, s.kv, s.inv), nil
}

// AcceptTests serves test connections until the listener is closed, which
// ends it with a nil error.
//
// Parallel clients are served concurrently. A serial client first waits
// for every parallel session accepted before it to finish, then is served
// on this goroutine, so nothing else is accepted until it is done.
// Misbehaving connections are logged and dropped; they never end the loop.
func (s *Server) AcceptTests() error {
	for {
		acc, err := s.ln.Accept()
		var hsErr *HandshakeError
		switch {
		case errors.As(err, &hsErr):
			slog.Warn("test connection error", "conn", hsErr.ID, "err", hsErr.Err)
			continue
		case errors.Is(err, net.ErrClosed):
			return nil
		case err != nil:
			return err
		}

		switch acc.Role {
		case protocol.RoleClient:
			s.pending.Add(1)
			go func() {
				defer s.pending.Done()
				runTestSession(acc.Conn, s.kv)
			}()
		case protocol.RoleClientSerial:
			s.pending.Wait()
			runTestSession(acc.Conn, s.kv)
		default:
			acc.Conn.Logger().Warn(fmt.Sprintf("unexpected connection %s, expected test connection", acc.Role))
			_ = acc.Conn.Close()
		}
	}
}

// Wait blocks until every parallel test session has finished.
func (s *Server) Wait() {
	s.pending.Wait()
}
