package channel

import (
	"context"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
)

// Message is one inbound chat message to bridge to an agent.
type Message struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	Text      string `json:"text"`
}

// Reply is the outcome of one bridged turn.
type Reply struct {
	Text       string        `json:"text"`
	SessionID  string        `json:"session_id,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Usage      *events.Usage `json:"usage,omitempty"`
	Aborted    bool          `json:"aborted"`
	// Error is the last error message observed; empty on success.
	Error string `json:"error,omitempty"`

	TotalCostUSD      float64  `json:"total_cost_usd,omitempty"`
	APIDurationMS     int64    `json:"api_duration_ms,omitempty"`
	NumTurns          int      `json:"num_turns,omitempty"`
	StopReason        string   `json:"stop_reason,omitempty"`
	ErrorSubtype      string   `json:"error_subtype,omitempty"`
	PermissionDenials []string `json:"permission_denials,omitempty"`
}

// Callbacks lets a caller observe events while a turn streams. All callbacks
// are optional; errors and panics inside a callback are logged and swallowed,
// never stopping the turn.
type Callbacks struct {
	OnPartialText      func(ctx context.Context, text string) error
	OnToolUse          func(ctx context.Context, ev events.AgentEvent) error
	OnToolResult       func(ctx context.Context, ev events.AgentEvent) error
	OnToolProgress     func(ctx context.Context, ev events.AgentEvent) error
	OnToolSummary      func(ctx context.Context, ev events.AgentEvent) error
	OnStatus           func(ctx context.Context, status string) error
	OnTaskStarted      func(ctx context.Context, ev events.AgentEvent) error
	OnTaskNotification func(ctx context.Context, ev events.AgentEvent) error
	OnError            func(ctx context.Context, message string) error
}
