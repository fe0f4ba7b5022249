package server

import (
	"errors"
	"io"

	"cargo-fixture/pkg/protocol"
	"cargo-fixture/pkg/rpc"
)

// runTestSession serves read-only KV requests until the test hangs up.
// Errors end the session and are logged; they never affect the run.
func runTestSession(conn *rpc.Conn, kv *KVStore) {
	defer conn.Close()
	if err := serveTest(conn, kv); err != nil {
		conn.Logger().Warn("test connection error", "err", err)
		return
	}
	conn.Logger().Debug("test connection closed")
}

func serveTest(conn *rpc.Conn, kv *KVStore) error {
	for {
		req, err := conn.RecvRequest()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var resp protocol.Response
		switch r := req.(type) {
		case protocol.GetKeyValue:
			resp = kv.reply(r.Key)
		default:
			return &protocol.UnexpectedMessageError{Got: req.Type(), Context: "test connections may only read values"}
		}
		if err := conn.Send(resp); err != nil {
			return err
		}
	}
}
