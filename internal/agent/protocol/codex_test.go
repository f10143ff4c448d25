package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
)

func TestCodexParserThreadStarted(t *testing.T) {
	p := NewCodexParser()

	lines := p.ParseLine(`{"type":"thread.started","thread_id":"th-1"}`)
	require.Len(t, lines, 1)
	assert.Equal(t, "th-1", lines[0].SessionID)
	assert.Nil(t, lines[0].Event)

	assert.Nil(t, p.ParseLine(`{"type":"thread.started"}`), "empty thread id is dropped")
}

func TestCodexParserCommandLifecycle(t *testing.T) {
	p := NewCodexParser()

	lines := p.ParseLine(`{"type":"item.started","item":{"id":"item_0","item_type":"command_execution","command":"ls -la"}}`)
	require.Len(t, lines, 1)
	require.NotNil(t, lines[0].Event)
	assert.Equal(t, events.KindToolUse, lines[0].Event.Kind)
	assert.Equal(t, "item_0", lines[0].Event.ToolID)
	assert.Equal(t, "command_execution", lines[0].Event.ToolName)
	assert.Equal(t, "ls -la", lines[0].Event.ToolInput)

	lines = p.ParseLine(`{"type":"item.completed","item":{"id":"item_0","item_type":"command_execution","aggregated_output":"total 8\n","exit_code":0,"status":"completed"}}`)
	require.Len(t, lines, 1)
	assert.Equal(t, events.KindToolResult, lines[0].Event.Kind)
	assert.Equal(t, "item_0", lines[0].Event.ToolID)
	assert.Equal(t, "total 8\n", lines[0].Event.ToolOutput)
	assert.False(t, lines[0].Event.ToolIsError)
}

func TestCodexParserFailedCommandIsError(t *testing.T) {
	p := NewCodexParser()

	lines := p.ParseLine(`{"type":"item.completed","item":{"id":"item_1","item_type":"command_execution","aggregated_output":"no such file","exit_code":2,"status":"failed"}}`)
	require.Len(t, lines, 1)
	assert.Equal(t, events.KindToolResult, lines[0].Event.Kind)
	assert.True(t, lines[0].Event.ToolIsError)
}

func TestCodexParserAgentMessage(t *testing.T) {
	p := NewCodexParser()

	assert.Nil(t, p.ParseLine(`{"type":"item.started","item":{"id":"item_2","item_type":"agent_message"}}`),
		"only command_execution starts are surfaced")

	lines := p.ParseLine(`{"type":"item.completed","item":{"id":"item_2","item_type":"agent_message","text":"All done."}}`)
	require.Len(t, lines, 1)
	assert.Equal(t, events.KindText, lines[0].Event.Kind)
	assert.Equal(t, "All done.", lines[0].Event.Text)
}

func TestCodexParserTurnCompletedUsage(t *testing.T) {
	p := NewCodexParser()

	lines := p.ParseLine(`{"type":"turn.completed","usage":{"input_tokens":120,"cached_input_tokens":40,"output_tokens":9}}`)
	require.Len(t, lines, 1)
	require.NotNil(t, lines[0].Usage)
	assert.Equal(t, int64(120), lines[0].Usage.InputTokens)
	assert.Equal(t, int64(40), lines[0].Usage.CacheReadTokens)
	assert.Equal(t, int64(9), lines[0].Usage.OutputTokens)
	assert.Nil(t, lines[0].Meta, "codex reports no result metadata")

	assert.Nil(t, p.ParseLine(`{"type":"turn.completed"}`))
}

func TestCodexParserErrorEnvelope(t *testing.T) {
	p := NewCodexParser()

	lines := p.ParseLine(`{"type":"error","message":"stream disconnected before completion"}`)
	require.Len(t, lines, 1)
	require.NotNil(t, lines[0].Event)
	assert.Equal(t, events.KindError, lines[0].Event.Kind)
	assert.Equal(t, "stream disconnected before completion", lines[0].Event.Message)
	assert.Equal(t, events.CategoryFatal, lines[0].Event.Category)
}

func TestCodexParserTolerance(t *testing.T) {
	p := NewCodexParser()

	assert.Nil(t, p.ParseLine(""))
	assert.Nil(t, p.ParseLine("Reading prompt from stdin..."))
	assert.Nil(t, p.ParseLine(`{"type":"item.started"}`))
	assert.Nil(t, p.ParseLine(`{"type":"something.new"}`))
}
