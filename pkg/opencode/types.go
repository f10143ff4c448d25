// Package opencode defines the wire types for `opencode --format json`
// output. OpenCode emits a single top-level envelope type and discriminates
// on the embedded part's type and state.
package opencode

import "encoding/json"

// TypeMessagePartUpdated is the only envelope type the CLI emits.
const TypeMessagePartUpdated = "message.part.updated"

// Part types.
const (
	PartText      = "text"
	PartThinking  = "thinking"
	PartReasoning = "reasoning"
	PartTool      = "tool"
)

// Tool part states.
const (
	StateRunning  = "running"
	StateComplete = "complete"
	StateFailed   = "failed"
)

// Envelope is one line of OpenCode JSON output.
type Envelope struct {
	Type string `json:"type"`
	Part *Part  `json:"part,omitempty"`
}

// Part is a fragment of the assistant message being updated.
type Part struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`

	// type == "text" | "thinking" | "reasoning"
	Text string `json:"text,omitempty"`

	// type == "tool"
	Tool   string          `json:"tool,omitempty"`
	State  string          `json:"state,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}
