package protocol

import (
	"encoding/json"
	"strings"
)

// MessageType is the value of the "msg" discriminator on the wire.
type MessageType string

// Request message types.
const (
	MsgHello               MessageType = "Hello"
	MsgSetEnv              MessageType = "SetEnv"
	MsgSetKeyValue         MessageType = "SetKeyValue"
	MsgGetKeyValue         MessageType = "GetKeyValue"
	MsgSetExtraTestArgs    MessageType = "SetExtraTestArgs"
	MsgSetExtraHarnessArgs MessageType = "SetExtraHarnessArgs"
	MsgSetExec             MessageType = "SetExec"
	MsgReady               MessageType = "Ready"
)

// Response message types.
const (
	MsgOk            MessageType = "Ok"
	MsgTestsFinished MessageType = "TestsFinished"
	MsgKeyValue      MessageType = "KeyValue"
)

// Message is anything that can be framed on the wire.
type Message interface {
	Type() MessageType
}

// Request is a message sent by a client. The set of implementations is
// closed: only the types in this file satisfy it.
type Request interface {
	Message
	isRequest()
}

// Response is a message sent by the server in reply to a Request. The set
// of implementations is closed.
type Response interface {
	Message
	isResponse()
}

// --- Requests ---

// Hello opens every connection.
type Hello struct {
	Version uint32 `json:"version"`
	Role    Role   `json:"connection_type"`
}

// SetEnv sets an environment variable for the test run.
type SetEnv struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SetKeyValue stores a JSON value in the KV store.
type SetKeyValue struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// GetKeyValue reads a value from the KV store.
type GetKeyValue struct {
	Key string `json:"key"`
}

// SetExtraTestArgs replaces the extra arguments passed to `cargo test`.
type SetExtraTestArgs struct {
	Args []string `json:"args"`
}

// SetExtraHarnessArgs replaces the extra arguments passed to the test binary
// (after `--`).
type SetExtraHarnessArgs struct {
	Args []string `json:"args"`
}

// SetExec replaces the test command with the given argv. An empty argv
// restores the default `cargo test` invocation.
type SetExec struct {
	Exec []string `json:"exec"`
}

// Ready asks the server to start the test run.
type Ready struct{}

func (Hello) Type() MessageType               { return MsgHello }
func (SetEnv) Type() MessageType              { return MsgSetEnv }
func (SetKeyValue) Type() MessageType         { return MsgSetKeyValue }
func (GetKeyValue) Type() MessageType         { return MsgGetKeyValue }
func (SetExtraTestArgs) Type() MessageType    { return MsgSetExtraTestArgs }
func (SetExtraHarnessArgs) Type() MessageType { return MsgSetExtraHarnessArgs }
func (SetExec) Type() MessageType             { return MsgSetExec }
func (Ready) Type() MessageType               { return MsgReady }

func (Hello) isRequest()               {}
func (SetEnv) isRequest()              {}
func (SetKeyValue) isRequest()         {}
func (GetKeyValue) isRequest()         {}
func (SetExtraTestArgs) isRequest()    {}
func (SetExtraHarnessArgs) isRequest() {}
func (SetExec) isRequest()             {}
func (Ready) isRequest()               {}

// --- Responses ---

// Ok acknowledges a request.
type Ok struct{}

// TestsFinished answers Ready once the test run has exited.
type TestsFinished struct {
	Success bool `json:"success"`
}

// KeyValue answers GetKeyValue. Value is nil when the key is absent.
type KeyValue struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (Ok) Type() MessageType            { return MsgOk }
func (TestsFinished) Type() MessageType { return MsgTestsFinished }
func (KeyValue) Type() MessageType      { return MsgKeyValue }

func (Ok) isResponse()            {}
func (TestsFinished) isResponse() {}
func (KeyValue) isResponse()      {}

// AsOk returns nil if resp is Ok and a *ResponseMismatchError otherwise.
func AsOk(resp Response) error {
	if _, ok := resp.(Ok); ok {
		return nil
	}
	return &ResponseMismatchError{Want: MsgOk, Got: resp}
}

// AsTestsFinished extracts the success flag from a TestsFinished response.
func AsTestsFinished(resp Response) (bool, error) {
	if tf, ok := resp.(TestsFinished); ok {
		return tf.Success, nil
	}
	return false, &ResponseMismatchError{Want: MsgTestsFinished, Got: resp}
}

// AsValue extracts the value from a KeyValue response. An absent key yields
// a *MissingKeyError.
func AsValue(resp Response) (json.RawMessage, error) {
	kv, ok := resp.(KeyValue)
	if !ok {
		return nil, &ResponseMismatchError{Want: MsgKeyValue, Got: resp}
	}
	if kv.Value == nil {
		return nil, &MissingKeyError{Key: kv.Key}
	}
	return kv.Value, nil
}

// ValidateSetEnv checks that name is non-empty and free of '=' and NUL, and
// that value contains no NUL.
func ValidateSetEnv(name, value string) error {
	if name == "" || strings.ContainsAny(name, "=\x00") || strings.ContainsRune(value, 0) {
		return ErrInvalidSetEnv
	}
	return nil
}
