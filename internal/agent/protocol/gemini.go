package protocol

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/pkg/gemini"
)

// GeminiParser parses Gemini CLI stream-json output. Gemini does not assign
// tool call ids, so each tool_use gets a freshly generated UUID; tool_result
// envelopes carry no id either and are dropped.
type GeminiParser struct{}

// NewGeminiParser returns a parser for the Gemini CLI family.
func NewGeminiParser() *GeminiParser { return &GeminiParser{} }

func (p *GeminiParser) ParseLine(line string) []events.ParsedLine {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var env gemini.Envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil
	}

	switch env.Type {
	case gemini.TypeInit:
		if env.SessionID == "" {
			return nil
		}
		return []events.ParsedLine{{SessionID: env.SessionID}}

	case gemini.TypeMessage:
		if env.Content == "" {
			return nil
		}
		return []events.ParsedLine{{
			Event: &events.AgentEvent{Kind: events.KindText, Text: env.Content},
		}}

	case gemini.TypeToolUse:
		name := env.Tool
		if name == "" {
			name = "unknown"
		}
		return []events.ParsedLine{{
			Event: &events.AgentEvent{
				Kind:      events.KindToolUse,
				ToolID:    uuid.NewString(),
				ToolName:  name,
				ToolInput: stringifyRaw(env.Args),
			},
		}}

	case gemini.TypeToolResult:
		// No id to correlate with; the result event carries tool totals.
		return nil

	case gemini.TypeResult:
		return []events.ParsedLine{p.parseResult(&env)}
	}
	return nil
}

func (p *GeminiParser) parseResult(env *gemini.Envelope) events.ParsedLine {
	out := events.ParsedLine{}
	if env.Stats == nil {
		return out
	}
	if len(env.Stats.Models) > 0 {
		u := &events.Usage{}
		for _, m := range env.Stats.Models {
			u.InputTokens += m.Tokens.Prompt
			u.OutputTokens += m.Tokens.Candidates
			u.CacheReadTokens += m.Tokens.Cached
		}
		out.Usage = u
	}
	if env.Stats.Tools != nil && env.Stats.Tools.TotalCalls > 0 {
		out.Meta = &events.ResultMeta{NumTurns: env.Stats.Tools.TotalCalls}
	}
	return out
}
