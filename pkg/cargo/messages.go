package cargo

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
)

// ReasonCompilerArtifact marks a message announcing a built artifact.
const ReasonCompilerArtifact = "compiler-artifact"

// Target identifies the cargo target an artifact belongs to.
type Target struct {
	Name string   `json:"name"`
	Kind []string `json:"kind"`
}

// Message is the subset of cargo's JSON message format cargo-fixture reads.
// Fields that do not apply to Reason are zero.
type Message struct {
	Reason     string  `json:"reason"`
	Target     *Target `json:"target,omitempty"`
	Executable *string `json:"executable,omitempty"`
}

// IsTestArtifact reports whether m announces a test executable for the
// target named name.
func (m Message) IsTestArtifact(name string) bool {
	return m.Reason == ReasonCompilerArtifact &&
		m.Target != nil &&
		m.Target.Name == name &&
		slices.Contains(m.Target.Kind, "test") &&
		m.Executable != nil
}

// Messages yields one Message per line of r. A line that fails to parse is
// yielded as an error and ends the sequence. The sequence reads r once and
// cannot be restarted.
func Messages(r io.Reader) iter.Seq2[Message, error] {
	br := bufio.NewReader(r)
	return func(yield func(Message, error) bool) {
		for {
			line, err := br.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				var m Message
				if jerr := json.Unmarshal(line, &m); jerr != nil {
					yield(Message{}, fmt.Errorf("failed to deserialize cargo build message %q: %w", bytes.TrimSpace(line), jerr))
					return
				}
				if !yield(m, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Message{}, fmt.Errorf("read cargo output: %w", err))
				return
			}
		}
	}
}

// ErrArtifactNotFound is returned when cargo's output ended without
// announcing the fixture executable.
var ErrArtifactNotFound = errors.New("fixture artifact not found in cargo JSON output")

// FindArtifact returns the executable of the first test artifact for the
// target named name. Whatever happens, r is read to EOF so cargo never
// blocks on a full pipe.
func FindArtifact(r io.Reader, name string) (string, error) {
	defer func() { _, _ = io.Copy(io.Discard, r) }()

	for m, err := range Messages(r) {
		if err != nil {
			return "", err
		}
		if m.IsTestArtifact(name) {
			return *m.Executable, nil
		}
	}
	return "", ErrArtifactNotFound
}
