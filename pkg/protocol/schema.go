package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/request.schema.json
var requestSchemaJSON string

//go:embed schema/response.schema.json
var responseSchemaJSON string

// Frames are checked against these before typed decoding so that shape
// errors carry a precise location.
var (
	requestSchema  = frameSchema{jsonschema.MustCompileString("https://cargo-fixture.local/request.schema.json", requestSchemaJSON)}
	responseSchema = frameSchema{jsonschema.MustCompileString("https://cargo-fixture.local/response.schema.json", responseSchemaJSON)}
)

type frameSchema struct {
	schema *jsonschema.Schema
}

func (s frameSchema) validate(line []byte) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON object")
	}
	return s.schema.Validate(doc)
}

// ValidateRequestFrame checks a raw line against the request schema without
// decoding it.
func ValidateRequestFrame(line []byte) error {
	return requestSchema.validate(trimLine(line))
}

// ValidateResponseFrame checks a raw line against the response schema
// without decoding it.
func ValidateResponseFrame(line []byte) error {
	return responseSchema.validate(trimLine(line))
}
