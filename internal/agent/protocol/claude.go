package protocol

import (
	"encoding/json"
	"strings"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/pkg/claudecode"
)

// ClaudeParser parses the Claude Code stream-json protocol. It is stateless;
// the zero value is ready to use.
type ClaudeParser struct{}

// NewClaudeParser returns a parser for the Claude CLI family.
func NewClaudeParser() *ClaudeParser { return &ClaudeParser{} }

func (p *ClaudeParser) ParseLine(line string) []events.ParsedLine {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var msg claudecode.CLIMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return nil
	}

	switch msg.Type {
	case claudecode.MessageTypeSystem:
		return []events.ParsedLine{p.parseSystem(&msg)}
	case claudecode.MessageTypeAssistant:
		return p.parseAssistant(&msg)
	case claudecode.MessageTypeResult:
		return []events.ParsedLine{p.parseResult(&msg)}
	case claudecode.MessageTypeToolProgress:
		return []events.ParsedLine{{
			SessionID: msg.SessionID,
			Event: &events.AgentEvent{
				Kind:           events.KindToolProgress,
				ToolID:         msg.ToolUseID,
				ToolName:       msg.ToolName,
				ElapsedSeconds: msg.ElapsedTimeSeconds,
			},
		}}
	case claudecode.MessageTypeToolUseSummary:
		return []events.ParsedLine{{
			SessionID: msg.SessionID,
			Event: &events.AgentEvent{
				Kind:    events.KindToolSummary,
				Summary: msg.Summary,
				ToolIDs: msg.PrecedingToolUseIDs,
			},
		}}
	default:
		// Unknown envelope: still surface it so the caller sees activity.
		return []events.ParsedLine{{SessionID: msg.SessionID}}
	}
}

func (p *ClaudeParser) parseSystem(msg *claudecode.CLIMessage) events.ParsedLine {
	out := events.ParsedLine{SessionID: msg.SessionID}

	switch msg.Subtype {
	case claudecode.SubtypeInit:
		status := msg.Status
		if status == "" {
			status = claudecode.SubtypeInit
		}
		out.Event = &events.AgentEvent{Kind: events.KindStatus, Status: status}
	case claudecode.SubtypeStatus:
		out.Event = &events.AgentEvent{Kind: events.KindStatus, Status: msg.Status}
	case claudecode.SubtypeTaskStarted:
		out.Event = &events.AgentEvent{
			Kind:            events.KindTaskStarted,
			TaskID:          msg.TaskID,
			TaskDescription: msg.TaskDescription,
			TaskType:        msg.TaskType,
		}
	case claudecode.SubtypeTaskNotification:
		status := msg.TaskStatus
		if status == "" {
			status = msg.Status
		}
		out.Event = &events.AgentEvent{
			Kind:        events.KindTaskNotification,
			TaskID:      msg.TaskID,
			TaskStatus:  status,
			TaskSummary: msg.Summary,
		}
	}
	return out
}

func (p *ClaudeParser) parseAssistant(msg *claudecode.CLIMessage) []events.ParsedLine {
	var out []events.ParsedLine
	if msg.Message != nil {
		for _, block := range msg.Message.Content {
			switch block.Type {
			case "text":
				out = append(out, events.ParsedLine{
					Event: &events.AgentEvent{Kind: events.KindText, Text: block.Text},
				})
			case "tool_use":
				out = append(out, events.ParsedLine{
					Event: &events.AgentEvent{
						Kind:      events.KindToolUse,
						ToolID:    block.ID,
						ToolName:  block.Name,
						ToolInput: stringifyInput(block.Input),
					},
				})
			}
		}
	}
	if len(out) == 0 {
		return []events.ParsedLine{{SessionID: msg.SessionID}}
	}
	out[0].SessionID = msg.SessionID
	return out
}

func (p *ClaudeParser) parseResult(msg *claudecode.CLIMessage) events.ParsedLine {
	out := events.ParsedLine{
		SessionID: msg.SessionID,
		Usage:     claudeUsage(msg),
		Meta: &events.ResultMeta{
			TotalCostUSD:  msg.TotalCostUSD,
			APIDurationMS: msg.DurationAPIMS,
			NumTurns:      msg.NumTurns,
			StopReason:    msg.StopReason,
		},
	}
	if msg.IsError && msg.Subtype != "" {
		out.Meta.ErrorSubtype = msg.Subtype
	}
	for _, d := range msg.PermissionDenials {
		out.Meta.PermissionDenials = append(out.Meta.PermissionDenials, d.ToolName)
	}
	return out
}

// claudeUsage prefers the per-model camelCase usage from the result envelope
// and falls back to the snake_case totals.
func claudeUsage(msg *claudecode.CLIMessage) *events.Usage {
	if len(msg.ModelUsage) > 0 {
		u := &events.Usage{}
		for _, m := range msg.ModelUsage {
			u.InputTokens += m.InputTokens
			u.OutputTokens += m.OutputTokens
			u.CacheReadTokens += m.CacheReadInputTokens
			u.CacheWriteTokens += m.CacheCreationInputTokens
			u.CostUSD += m.CostUSD
			u.WebSearchRequests += m.WebSearchRequests
		}
		return u
	}
	if msg.Usage != nil {
		return &events.Usage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
		}
	}
	return nil
}
