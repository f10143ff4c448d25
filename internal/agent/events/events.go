// Package events defines the normalized event stream emitted by agent CLI
// runtimes. Every supported CLI family is parsed into this one union so the
// channel bridge and its callers never see family-specific wire formats.
package events

// Kind identifies the event variant.
type Kind string

const (
	KindText             Kind = "text"
	KindToolUse          Kind = "tool_use"
	KindToolResult       Kind = "tool_result"
	KindToolProgress     Kind = "tool_progress"
	KindToolSummary      Kind = "tool_summary"
	KindStatus           Kind = "status"
	KindTaskStarted      Kind = "task_started"
	KindTaskNotification Kind = "task_notification"
	KindError            Kind = "error"
	// KindDone terminates every run. Exactly one per run, always last.
	KindDone Kind = "done"
)

// ErrorCategory classifies a run failure for the surrounding reply loop.
type ErrorCategory string

const (
	// CategoryRetryable marks transient server or network issues worth retrying.
	CategoryRetryable ErrorCategory = "retryable"
	// CategoryContextOverflow marks a blown model context window.
	CategoryContextOverflow ErrorCategory = "context_overflow"
	// CategoryFatal marks auth, config, or programmer errors.
	CategoryFatal ErrorCategory = "fatal"
	// CategoryTimeout marks a total-timeout or no-output watchdog fire.
	CategoryTimeout ErrorCategory = "timeout"
	// CategoryAborted marks caller cancellation.
	CategoryAborted ErrorCategory = "aborted"
)

// AgentEvent is a tagged union; Kind determines which fields are populated.
type AgentEvent struct {
	Kind Kind `json:"kind"`

	// KindText: a fragment of assistant text.
	Text string `json:"text,omitempty"`

	// KindToolUse / KindToolResult / KindToolProgress
	ToolID         string  `json:"tool_id,omitempty"`
	ToolName       string  `json:"tool_name,omitempty"`
	ToolInput      string  `json:"tool_input,omitempty"`
	ToolOutput     string  `json:"tool_output,omitempty"`
	ToolIsError    bool    `json:"tool_is_error,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds,omitempty"`

	// KindToolSummary
	Summary string   `json:"summary,omitempty"`
	ToolIDs []string `json:"tool_ids,omitempty"`

	// KindStatus
	Status string `json:"status,omitempty"`

	// KindTaskStarted / KindTaskNotification
	TaskID          string `json:"task_id,omitempty"`
	TaskDescription string `json:"task_description,omitempty"`
	TaskType        string `json:"task_type,omitempty"`
	TaskStatus      string `json:"task_status,omitempty"`
	TaskSummary     string `json:"task_summary,omitempty"`

	// KindError
	Message  string        `json:"message,omitempty"`
	Category ErrorCategory `json:"category,omitempty"`

	// KindDone
	Result *RunResult `json:"result,omitempty"`
}

// Usage carries token accounting for a run. Zero values mean "not reported".
type Usage struct {
	InputTokens       int64   `json:"input_tokens,omitempty"`
	OutputTokens      int64   `json:"output_tokens,omitempty"`
	CacheReadTokens   int64   `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens  int64   `json:"cache_write_tokens,omitempty"`
	CostUSD           float64 `json:"cost_usd,omitempty"`
	WebSearchRequests int64   `json:"web_search_requests,omitempty"`
}

// ResultMeta is metadata extracted from a family's terminal result envelope.
type ResultMeta struct {
	TotalCostUSD      float64  `json:"total_cost_usd,omitempty"`
	APIDurationMS     int64    `json:"api_duration_ms,omitempty"`
	NumTurns          int      `json:"num_turns,omitempty"`
	StopReason        string   `json:"stop_reason,omitempty"`
	ErrorSubtype      string   `json:"error_subtype,omitempty"`
	PermissionDenials []string `json:"permission_denials,omitempty"`
}

// RunResult is the terminal payload of a run, carried by the done event.
// Text is the exact in-order concatenation of all text events of the run.
type RunResult struct {
	Text       string `json:"text"`
	SessionID  string `json:"session_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Usage      *Usage `json:"usage,omitempty"`
	Aborted    bool   `json:"aborted"`

	TotalCostUSD      float64  `json:"total_cost_usd,omitempty"`
	APIDurationMS     int64    `json:"api_duration_ms,omitempty"`
	NumTurns          int      `json:"num_turns,omitempty"`
	StopReason        string   `json:"stop_reason,omitempty"`
	ErrorSubtype      string   `json:"error_subtype,omitempty"`
	PermissionDenials []string `json:"permission_denials,omitempty"`
}

// ApplyMeta copies result-envelope metadata onto the run result.
func (r *RunResult) ApplyMeta(m *ResultMeta) {
	if m == nil {
		return
	}
	if m.TotalCostUSD != 0 {
		r.TotalCostUSD = m.TotalCostUSD
	}
	if m.APIDurationMS != 0 {
		r.APIDurationMS = m.APIDurationMS
	}
	if m.NumTurns != 0 {
		r.NumTurns = m.NumTurns
	}
	if m.StopReason != "" {
		r.StopReason = m.StopReason
	}
	if m.ErrorSubtype != "" {
		r.ErrorSubtype = m.ErrorSubtype
	}
	if len(m.PermissionDenials) > 0 {
		r.PermissionDenials = m.PermissionDenials
	}
}

// ParsedLine is what a family parser extracts from one stdout line. All
// fields are optional; a blank or unparseable line yields no ParsedLine at
// all. A single envelope with several content parts yields several.
type ParsedLine struct {
	Event     *AgentEvent
	SessionID string
	Usage     *Usage
	Meta      *ResultMeta
}
