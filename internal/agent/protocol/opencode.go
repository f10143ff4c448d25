package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/pkg/opencode"
)

// OpenCodeParser parses `opencode --format json` output. OpenCode does not
// assign tool call ids, so the parser mints its own from a per-instance
// counter prefixed with the process pid, keyed by part id so that a tool's
// running and completed updates share one id. One parser per run.
type OpenCodeParser struct {
	prefix  string
	counter int
	ids     map[string]string
}

// NewOpenCodeParser returns a parser for the OpenCode CLI family.
func NewOpenCodeParser() *OpenCodeParser {
	return &OpenCodeParser{
		prefix: fmt.Sprintf("oc-%d", os.Getpid()),
		ids:    make(map[string]string),
	}
}

func (p *OpenCodeParser) ParseLine(line string) []events.ParsedLine {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var env opencode.Envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil
	}
	if env.Type != opencode.TypeMessagePartUpdated || env.Part == nil {
		return nil
	}

	part := env.Part
	switch part.Type {
	case opencode.PartText:
		if part.Text == "" {
			return nil
		}
		return []events.ParsedLine{{
			Event: &events.AgentEvent{Kind: events.KindText, Text: part.Text},
		}}

	case opencode.PartThinking, opencode.PartReasoning:
		return nil

	case opencode.PartTool:
		return p.parseTool(part)
	}
	return nil
}

func (p *OpenCodeParser) parseTool(part *opencode.Part) []events.ParsedLine {
	switch part.State {
	case opencode.StateRunning:
		name := part.Tool
		if name == "" {
			name = "unknown"
		}
		return []events.ParsedLine{{
			Event: &events.AgentEvent{
				Kind:      events.KindToolUse,
				ToolID:    p.toolID(part.ID),
				ToolName:  name,
				ToolInput: stringifyRaw(part.Input),
			},
		}}
	case opencode.StateComplete, opencode.StateFailed:
		failed := part.State == opencode.StateFailed
		output := part.Output
		if output == "" && failed {
			output = part.Error
		}
		return []events.ParsedLine{{
			Event: &events.AgentEvent{
				Kind:        events.KindToolResult,
				ToolID:      p.toolID(part.ID),
				ToolOutput:  output,
				ToolIsError: failed,
			},
		}}
	}
	return nil
}

// toolID returns the id minted for the given part, allocating on first use.
// Parts without an id get a fresh id per update.
func (p *OpenCodeParser) toolID(partID string) string {
	if partID != "" {
		if id, ok := p.ids[partID]; ok {
			return id
		}
	}
	p.counter++
	id := fmt.Sprintf("%s-%d", p.prefix, p.counter)
	if partID != "" {
		p.ids[partID] = id
	}
	return id
}
