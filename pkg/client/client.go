// Package client is the Go side of the cargo-fixture protocol for programs
// launched by cargo-fixture: the fixture itself and the tests it serves.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/pkg/protocol"
	"cargo-fixture/pkg/rpc"
)

// FixtureClient configures the test run. A fixture program connects once,
// issues its setters, then calls Ready.
type FixtureClient struct {
	conn *rpc.Conn
}

// ConnectFixture dials the socket named by CARGO_FIXTURE_SOCKET as the
// fixture.
func ConnectFixture(ctx context.Context) (*FixtureClient, error) {
	conn, err := rpc.DialEnv(ctx, protocol.RoleFixture)
	if err != nil {
		return nil, err
	}
	return &FixtureClient{conn: conn}, nil
}

// NewFixtureClient wraps an already handshaken connection.
func NewFixtureClient(conn *rpc.Conn) *FixtureClient {
	return &FixtureClient{conn: conn}
}

// SetEnvVar sets an environment variable for the test run. Invalid names or
// values are rejected locally with protocol.ErrInvalidSetEnv.
func (c *FixtureClient) SetEnvVar(name, value string) error {
	if err := protocol.ValidateSetEnv(name, value); err != nil {
		return ferrors.Wrapf(err, ferrors.KindValidation, "set %s", name)
	}
	return c.callOk(protocol.SetEnv{Name: name, Value: value})
}

// SetEnvVars calls SetEnvVar for each entry, stopping at the first error.
func (c *FixtureClient) SetEnvVars(vars map[string]string) error {
	for name, value := range vars {
		if err := c.SetEnvVar(name, value); err != nil {
			return err
		}
	}
	return nil
}

// SetExtraCargoTestArgs replaces the extra arguments appended to `cargo test`.
func (c *FixtureClient) SetExtraCargoTestArgs(args ...string) error {
	return c.callOk(protocol.SetExtraTestArgs{Args: args})
}

// SetExtraTestBinaryArgs replaces the extra arguments passed to the test
// binary after `--`.
func (c *FixtureClient) SetExtraTestBinaryArgs(args ...string) error {
	return c.callOk(protocol.SetExtraHarnessArgs{Args: args})
}

// SetValue stores the JSON encoding of value under key.
func (c *FixtureClient) SetValue(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	return c.callOk(protocol.SetKeyValue{Key: key, Value: raw})
}

// GetValue reads back a value and decodes it into out.
func (c *FixtureClient) GetValue(key string, out any) error {
	return getValue(c.conn, key, out)
}

// SetExec replaces the test command with argv. No arguments restores the
// default `cargo test` invocation. A --exec given to cargo-fixture on the
// command line takes precedence over this.
func (c *FixtureClient) SetExec(argv ...string) error {
	return c.callOk(protocol.SetExec{Exec: argv})
}

// Ready starts the test run and blocks until it finishes, reporting whether
// it succeeded.
func (c *FixtureClient) Ready() (bool, error) {
	resp, err := c.conn.Call(protocol.Ready{})
	if err != nil {
		return false, err
	}
	return protocol.AsTestsFinished(resp)
}

// Close hangs up. The test run is not started if Ready was never called.
func (c *FixtureClient) Close() error {
	return c.conn.Close()
}

func (c *FixtureClient) callOk(req protocol.Request) error {
	resp, err := c.conn.Call(req)
	if err != nil {
		return err
	}
	return protocol.AsOk(resp)
}

// TestClient reads values published by the fixture.
type TestClient struct {
	conn *rpc.Conn
}

// ConnectTest dials the socket named by CARGO_FIXTURE_SOCKET as a test.
// A serial client runs exclusively: cargo-fixture waits for every parallel
// client to finish before serving it and accepts no one else meanwhile.
func ConnectTest(ctx context.Context, serial bool) (*TestClient, error) {
	conn, err := rpc.DialEnv(ctx, protocol.ClientRole(serial))
	if err != nil {
		return nil, err
	}
	return &TestClient{conn: conn}, nil
}

// NewTestClient wraps an already handshaken connection.
func NewTestClient(conn *rpc.Conn) *TestClient {
	return &TestClient{conn: conn}
}

// GetValue decodes the value stored under key into out. A key the fixture
// never set yields a *protocol.MissingKeyError.
func (c *TestClient) GetValue(key string, out any) error {
	return getValue(c.conn, key, out)
}

// Close hangs up.
func (c *TestClient) Close() error {
	return c.conn.Close()
}

func getValue(conn *rpc.Conn, key string, out any) error {
	resp, err := conn.Call(protocol.GetKeyValue{Key: key})
	if err != nil {
		return err
	}
	raw, err := protocol.AsValue(resp)
	var missing *protocol.MissingKeyError
	switch {
	case ferrors.As(err, &missing):
		return ferrors.Wrap(err, ferrors.KindNotFound, "get value")
	case err != nil:
		return ferrors.Wrap(err, ferrors.KindProtocol, "get value")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode value for %q: %w", key, err)
	}
	return nil
}
