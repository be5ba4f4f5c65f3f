// Package protocol defines the line-oriented message schema a child agent
// writes on stdout. A child's output is a mixed stream: structured control
// lines and free-form diagnostic text. A control line is a single-line JSON
// object tagged with a kind; anything that does not parse as one degrades to
// diagnostic text, never to an error, so children may log freely.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Kind tags a control line.
type Kind string

const (
	// KindReasoning carries an incremental human-readable progress string.
	KindReasoning Kind = "reasoning"
	// KindResult carries the final output string. Logically terminal for the
	// useful portion of the stream; the child may keep writing diagnostics.
	KindResult Kind = "result"
)

// Message is one structured control line.
type Message struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// ParseLine interprets one stdout line. ok is false when the line is plain
// diagnostic text: not JSON, not an object, missing or unknown kind. Extra
// JSON fields are ignored for forward compatibility.
func ParseLine(line []byte) (Message, bool) {
	trimmed := strings.TrimSpace(string(line))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return Message{}, false
	}
	switch msg.Kind {
	case KindReasoning, KindResult:
		return msg, true
	default:
		return Message{}, false
	}
}

// WriteMessage emits one control line to w, newline-terminated.
func WriteMessage(w io.Writer, msg Message) error {
	if msg.Kind != KindReasoning && msg.Kind != KindResult {
		return fmt.Errorf("invalid message kind: %q", msg.Kind)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Emitter writes control lines for the child side of the protocol.
type Emitter struct {
	w io.Writer
}

// NewEmitter returns an Emitter writing to w, normally the child's stdout.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Reasoning emits a reasoning line.
func (e *Emitter) Reasoning(text string) error {
	return WriteMessage(e.w, Message{Kind: KindReasoning, Text: text})
}

// Result emits the result line.
func (e *Emitter) Result(text string) error {
	return WriteMessage(e.w, Message{Kind: KindResult, Text: text})
}
