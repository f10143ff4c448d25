// Package gemini defines the wire types for the Gemini CLI
// `--output-format stream-json` protocol.
package gemini

import "encoding/json"

// Envelope types.
const (
	TypeInit       = "init"
	TypeMessage    = "message"
	TypeToolUse    = "tool_use"
	TypeToolResult = "tool_result"
	TypeResult     = "result"
)

// Envelope is one line of Gemini stream-json output.
type Envelope struct {
	Type string `json:"type"`

	// init
	SessionID string `json:"sessionId,omitempty"`

	// message
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	// tool_use; Args may be a string or an arbitrary JSON value.
	Tool string          `json:"tool,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// result
	Stats *Stats `json:"stats,omitempty"`
}

// Stats is the result envelope's accounting block.
type Stats struct {
	Models map[string]ModelStats `json:"models,omitempty"`
	Tools  *ToolStats            `json:"tools,omitempty"`
}

// ModelStats carries per-model token counts.
type ModelStats struct {
	Tokens TokenStats `json:"tokens"`
}

// TokenStats breaks tokens down by role.
type TokenStats struct {
	Prompt     int64 `json:"prompt"`
	Candidates int64 `json:"candidates"`
	Cached     int64 `json:"cached,omitempty"`
}

// ToolStats counts tool invocations across the run.
type ToolStats struct {
	TotalCalls int `json:"totalCalls"`
}
