package protocol

import (
	"encoding/json"
	"strings"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/pkg/codex"
)

// CodexParser parses `codex exec --json` output. Codex reports no result
// metadata beyond token usage, so Meta is never set.
type CodexParser struct{}

// NewCodexParser returns a parser for the Codex CLI family.
func NewCodexParser() *CodexParser { return &CodexParser{} }

func (p *CodexParser) ParseLine(line string) []events.ParsedLine {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var env codex.Envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil
	}

	switch env.Type {
	case codex.TypeThreadStarted:
		if env.ThreadID == "" {
			return nil
		}
		return []events.ParsedLine{{SessionID: env.ThreadID}}

	case codex.TypeItemStarted:
		if env.Item == nil || env.Item.ItemType != codex.ItemCommandExecution {
			return nil
		}
		return []events.ParsedLine{{
			Event: &events.AgentEvent{
				Kind:      events.KindToolUse,
				ToolID:    env.Item.ID,
				ToolName:  codex.ItemCommandExecution,
				ToolInput: env.Item.Command,
			},
		}}

	case codex.TypeItemCompleted:
		if env.Item == nil {
			return nil
		}
		switch env.Item.ItemType {
		case codex.ItemAgentMessage:
			return []events.ParsedLine{{
				Event: &events.AgentEvent{Kind: events.KindText, Text: env.Item.Text},
			}}
		case codex.ItemCommandExecution:
			return []events.ParsedLine{{
				Event: &events.AgentEvent{
					Kind:        events.KindToolResult,
					ToolID:      env.Item.ID,
					ToolOutput:  env.Item.AggregatedOutput,
					ToolIsError: env.Item.Status == codex.StatusFailed,
				},
			}}
		}
		return nil

	case codex.TypeTurnCompleted:
		if env.Usage == nil {
			return nil
		}
		return []events.ParsedLine{{
			Usage: &events.Usage{
				InputTokens:     env.Usage.InputTokens,
				CacheReadTokens: env.Usage.CachedInputTokens,
				OutputTokens:    env.Usage.OutputTokens,
			},
		}}

	case codex.TypeError:
		return []events.ParsedLine{{
			Event: &events.AgentEvent{
				Kind:     events.KindError,
				Message:  env.Message,
				Category: events.CategoryFatal,
			},
		}}
	}
	return nil
}
