// Package claudecode defines the wire types for the Claude Code CLI
// stream-json protocol: one JSON envelope per stdout line, discriminated by
// the top-level "type" field.
package claudecode

import "encoding/json"

// Envelope types emitted by the CLI.
const (
	// MessageTypeSystem carries session initialization and status updates.
	MessageTypeSystem = "system"
	// MessageTypeAssistant contains assistant content blocks.
	MessageTypeAssistant = "assistant"
	// MessageTypeResult is the terminal envelope with usage and cost.
	MessageTypeResult = "result"
	// MessageTypeToolProgress reports elapsed time for a running tool.
	MessageTypeToolProgress = "tool_progress"
	// MessageTypeToolUseSummary summarizes a batch of preceding tool calls.
	MessageTypeToolUseSummary = "tool_use_summary"
)

// System envelope subtypes.
const (
	SubtypeInit             = "init"
	SubtypeStatus           = "status"
	SubtypeTaskStarted      = "task_started"
	SubtypeTaskNotification = "task_notification"
)

// CLIMessage represents one stream-json envelope. The envelope type
// determines which fields are populated.
type CLIMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// Session identity; present on system, assistant and result envelopes.
	SessionID string `json:"session_id,omitempty"`

	// For system status / task envelopes.
	Status          string `json:"status,omitempty"`
	TaskID          string `json:"task_id,omitempty"`
	TaskDescription string `json:"description,omitempty"`
	TaskType        string `json:"task_type,omitempty"`
	TaskStatus      string `json:"task_status,omitempty"`
	Summary         string `json:"summary,omitempty"`

	// For assistant envelopes.
	Message *AssistantMessage `json:"message,omitempty"`

	// For tool_progress envelopes.
	ToolUseID          string  `json:"tool_use_id,omitempty"`
	ToolName           string  `json:"tool_name,omitempty"`
	ElapsedTimeSeconds float64 `json:"elapsed_time_seconds,omitempty"`

	// For tool_use_summary envelopes.
	PrecedingToolUseIDs []string `json:"preceding_tool_use_ids,omitempty"`

	// For result envelopes. Result may be a string or an object.
	Result            json.RawMessage       `json:"result,omitempty"`
	IsError           bool                  `json:"is_error,omitempty"`
	TotalCostUSD      float64               `json:"total_cost_usd,omitempty"`
	DurationMS        int64                 `json:"duration_ms,omitempty"`
	DurationAPIMS     int64                 `json:"duration_api_ms,omitempty"`
	NumTurns          int                   `json:"num_turns,omitempty"`
	StopReason        string                `json:"stop_reason,omitempty"`
	Usage             *Usage                `json:"usage,omitempty"`
	ModelUsage        map[string]ModelUsage `json:"modelUsage,omitempty"`
	PermissionDenials []PermissionDenial    `json:"permission_denials,omitempty"`
}

// AssistantMessage contains the assistant's content blocks.
type AssistantMessage struct {
	Role       string         `json:"role,omitempty"`
	Model      string         `json:"model,omitempty"`
	StopReason string         `json:"stop_reason,omitempty"`
	Content    []ContentBlock `json:"content,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
}

// ContentBlock is one element of an assistant message.
type ContentBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "thinking"
	Thinking string `json:"thinking,omitempty"`

	// type == "tool_use"
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// Usage carries snake_case token totals.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

// ModelUsage carries camelCase per-model usage from the result envelope.
// Preferred over the snake_case totals when present.
type ModelUsage struct {
	InputTokens              int64   `json:"inputTokens"`
	OutputTokens             int64   `json:"outputTokens"`
	CacheReadInputTokens     int64   `json:"cacheReadInputTokens,omitempty"`
	CacheCreationInputTokens int64   `json:"cacheCreationInputTokens,omitempty"`
	CostUSD                  float64 `json:"costUSD,omitempty"`
	WebSearchRequests        int64   `json:"webSearchRequests,omitempty"`
}

// PermissionDenial records a tool call the permission system refused.
type PermissionDenial struct {
	ToolName  string `json:"tool_name"`
	ToolUseID string `json:"tool_use_id,omitempty"`
}

// ErrorSubtypes seen on result envelopes.
const (
	ResultSubtypeSuccess        = "success"
	ResultSubtypeErrorMaxTurns  = "error_max_turns"
	ResultSubtypeErrorDuringRun = "error_during_execution"
)
