package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	ferrors "cargo-fixture/internal/errors"
	"cargo-fixture/pkg/client"
	"cargo-fixture/pkg/protocol"
	"cargo-fixture/pkg/rpc"
)

// fakeServer answers each request on the server end of a pipe with the
// next canned response.
func fakeServer(t *testing.T, responses ...protocol.Response) (*rpc.Conn, <-chan protocol.Request) {
	t.Helper()
	a, b := net.Pipe()
	srv := rpc.New(b, nil)
	reqs := make(chan protocol.Request, len(responses)+1)
	go func() {
		defer srv.Close()
		for _, resp := range responses {
			req, err := srv.RecvRequest()
			if err != nil {
				return
			}
			reqs <- req
			if err := srv.Send(resp); err != nil {
				return
			}
		}
	}()
	c := rpc.New(a, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, reqs
}

func TestConnectWithoutSocketEnv(t *testing.T) {
	t.Setenv(protocol.EnvSocket, "")

	if _, err := client.ConnectFixture(context.Background()); !errors.Is(err, protocol.ErrNotRunning) {
		t.Errorf("ConnectFixture: expected ErrNotRunning, got %v", err)
	}
	if _, err := client.ConnectTest(context.Background(), true); !errors.Is(err, protocol.ErrNotRunning) {
		t.Errorf("ConnectTest: expected ErrNotRunning, got %v", err)
	}
}

func TestFixtureClientRequests(t *testing.T) {
	conn, reqs := fakeServer(t, protocol.Ok{}, protocol.Ok{}, protocol.Ok{}, protocol.TestsFinished{Success: true})
	fc := client.NewFixtureClient(conn)

	if err := fc.SetValue("cfg", struct {
		Host string `json:"host"`
	}{"localhost"}); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := <-reqs; string(got.(protocol.SetKeyValue).Value) != `{"host":"localhost"}` {
		t.Errorf("SetValue sent %+v", got)
	}

	if err := fc.SetExec(); err != nil {
		t.Fatalf("SetExec: %v", err)
	}
	if got := (<-reqs).(protocol.SetExec); len(got.Exec) != 0 {
		t.Errorf("empty SetExec sent %+v", got)
	}

	if err := fc.SetExtraTestBinaryArgs("--exact", "it_works"); err != nil {
		t.Fatalf("SetExtraTestBinaryArgs: %v", err)
	}
	if got := (<-reqs).(protocol.SetExtraHarnessArgs); len(got.Args) != 2 {
		t.Errorf("sent %+v", got)
	}

	ok, err := fc.Ready()
	if err != nil || !ok {
		t.Fatalf("Ready = %v, %v", ok, err)
	}
}

func TestFixtureClientUnencodableValue(t *testing.T) {
	conn, _ := fakeServer(t)
	fc := client.NewFixtureClient(conn)

	if err := fc.SetValue("ch", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestTestClientResponseMismatch(t *testing.T) {
	conn, _ := fakeServer(t, protocol.Ok{})
	tc := client.NewTestClient(conn)

	var v int
	err := tc.GetValue("k", &v)
	var mismatch *protocol.ResponseMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ResponseMismatchError, got %v", err)
	}
	if ferrors.GetKind(err) != ferrors.KindProtocol {
		t.Errorf("kind = %s, want protocol", ferrors.GetKind(err))
	}
}

func TestTestClientDecodeError(t *testing.T) {
	conn, _ := fakeServer(t, protocol.KeyValue{Key: "k", Value: json.RawMessage(`"text"`)})
	tc := client.NewTestClient(conn)

	var v int
	if err := tc.GetValue("k", &v); err == nil {
		t.Fatal("expected decode error")
	}
}
