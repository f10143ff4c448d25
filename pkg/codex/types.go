// Package codex defines the wire types for `codex exec --json`: one JSON
// envelope per stdout line, discriminated by the top-level "type" field.
package codex

// Envelope types.
const (
	TypeThreadStarted = "thread.started"
	TypeItemStarted   = "item.started"
	TypeItemCompleted = "item.completed"
	TypeTurnCompleted = "turn.completed"
	TypeError         = "error"
)

// Item types.
const (
	ItemAgentMessage     = "agent_message"
	ItemCommandExecution = "command_execution"
)

// Item statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Envelope is one line of Codex JSON output.
type Envelope struct {
	Type string `json:"type"`

	// thread.started
	ThreadID string `json:"thread_id,omitempty"`

	// item.started / item.completed
	Item *Item `json:"item,omitempty"`

	// turn.completed
	Usage *Usage `json:"usage,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Item is a unit of work inside a turn.
type Item struct {
	ID       string `json:"id,omitempty"`
	ItemType string `json:"item_type,omitempty"`

	// item_type == "agent_message"
	Text string `json:"text,omitempty"`

	// item_type == "command_execution"
	Command          string `json:"command,omitempty"`
	AggregatedOutput string `json:"aggregated_output,omitempty"`
	ExitCode         int    `json:"exit_code,omitempty"`
	Status           string `json:"status,omitempty"`
}

// Usage carries token counts from turn.completed.
type Usage struct {
	InputTokens       int64 `json:"input_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens,omitempty"`
	OutputTokens      int64 `json:"output_tokens"`
}
