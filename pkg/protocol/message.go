package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the on-wire shape of every message: {"msg": ..., "data": ...}.
// Messages without fields (Ok, Ready) omit "data".
type envelope struct {
	Msg  MessageType     `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode renders m as one newline-terminated JSON line.
func Encode(m Message) ([]byte, error) {
	env := envelope{Msg: m.Type()}

	switch v := m.(type) {
	case Ok, Ready, *Ok, *Ready:
		// no payload
	case SetExtraTestArgs:
		v.Args = nonNil(v.Args)
		env.Data, _ = json.Marshal(v)
	case SetExtraHarnessArgs:
		v.Args = nonNil(v.Args)
		env.Data, _ = json.Marshal(v)
	case SetExec:
		v.Exec = nonNil(v.Exec)
		env.Data, _ = json.Marshal(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", m.Type(), err)
		}
		env.Data = data
	}

	line, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Type(), err)
	}
	return append(line, '\n'), nil
}

// DecodeRequest parses one line (with or without its trailing newline) into
// a Request. Any framing or shape problem is a *FrameError.
func DecodeRequest(line []byte) (Request, error) {
	env, err := decodeEnvelope(line, requestSchema)
	if err != nil {
		return nil, err
	}

	var req Request
	switch env.Msg {
	case MsgHello:
		req, err = decodeData[Hello](env.Data)
	case MsgSetEnv:
		req, err = decodeData[SetEnv](env.Data)
	case MsgSetKeyValue:
		req, err = decodeData[SetKeyValue](env.Data)
	case MsgGetKeyValue:
		req, err = decodeData[GetKeyValue](env.Data)
	case MsgSetExtraTestArgs:
		req, err = decodeData[SetExtraTestArgs](env.Data)
	case MsgSetExtraHarnessArgs:
		req, err = decodeData[SetExtraHarnessArgs](env.Data)
	case MsgSetExec:
		req, err = decodeData[SetExec](env.Data)
	case MsgReady:
		req = Ready{}
	default:
		err = fmt.Errorf("unknown request %q", env.Msg)
	}
	if err != nil {
		return nil, &FrameError{Line: string(trimLine(line)), Err: err}
	}
	return req, nil
}

// DecodeResponse parses one line into a Response.
func DecodeResponse(line []byte) (Response, error) {
	env, err := decodeEnvelope(line, responseSchema)
	if err != nil {
		return nil, err
	}

	var resp Response
	switch env.Msg {
	case MsgOk:
		resp = Ok{}
	case MsgTestsFinished:
		resp, err = decodeData[TestsFinished](env.Data)
	case MsgKeyValue:
		resp, err = decodeData[KeyValue](env.Data)
	default:
		err = fmt.Errorf("unknown response %q", env.Msg)
	}
	if err != nil {
		return nil, &FrameError{Line: string(trimLine(line)), Err: err}
	}
	return resp, nil
}

func decodeEnvelope(line []byte, schema frameSchema) (envelope, error) {
	line = trimLine(line)
	if err := schema.validate(line); err != nil {
		return envelope{}, &FrameError{Line: string(line), Err: err}
	}
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return envelope{}, &FrameError{Line: string(line), Err: err}
	}
	return env, nil
}

func decodeData[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("missing data")
	}
	err := json.Unmarshal(data, &v)
	return v, err
}

func trimLine(line []byte) []byte {
	return bytes.TrimRight(line, "\r\n")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
