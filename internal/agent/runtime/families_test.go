package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
)

func TestClaudeInvocationFresh(t *testing.T) {
	f := &ClaudeFamily{}
	inv := f.BuildInvocation(Params{
		Prompt:   "hello",
		Model:    "opus",
		MaxTurns: 5,
	}, []string{"--permission-mode", "plan"})

	require.Equal(t, []string{
		"--print", "--output-format", "stream-json", "--verbose", "--dangerously-skip-permissions",
		"--permission-mode", "plan",
		"--model", "opus",
		"--max-turns", "5",
		"hello",
	}, inv.Args)
	assert.Empty(t, inv.Stdin)
}

func TestClaudeInvocationResume(t *testing.T) {
	f := &ClaudeFamily{}
	inv := f.BuildInvocation(Params{Prompt: "continue", SessionID: "s-42"}, nil)

	require.Equal(t, []string{
		"--print", "--output-format", "stream-json", "--verbose", "--dangerously-skip-permissions",
		"--resume", "s-42",
		"continue",
	}, inv.Args)
}

func TestClaudeLongPromptGoesToStdin(t *testing.T) {
	f := &ClaudeFamily{}
	prompt := strings.Repeat("x", stdinPromptThreshold+1)
	inv := f.BuildInvocation(Params{Prompt: prompt}, nil)

	assert.Equal(t, prompt, inv.Stdin)
	assert.NotContains(t, inv.Args, prompt)
}

func TestClaudeAuthEnv(t *testing.T) {
	f := &ClaudeFamily{}

	env, strip := f.AuthEnv(Params{Auth: auth.Resolved{Mode: auth.ModeAPIKey, APIKey: "sk-ant-123"}})
	assert.Equal(t, "sk-ant-123", env["ANTHROPIC_API_KEY"])
	assert.Equal(t, "", env["CLAUDECODE"])
	assert.Empty(t, strip)

	env, _ = f.AuthEnv(Params{Auth: auth.Resolved{Mode: auth.ModeOAuth, APIKey: "tok-1"}})
	assert.Equal(t, "tok-1", env["CLAUDE_CODE_OAUTH_TOKEN"])
	assert.NotContains(t, env, "ANTHROPIC_API_KEY")

	env, _ = f.AuthEnv(Params{Auth: auth.Resolved{Mode: auth.ModeAWSSDK}})
	assert.Equal(t, map[string]string{"CLAUDECODE": ""}, env)
}

func TestCodexInvocationFresh(t *testing.T) {
	f := &CodexFamily{}
	inv := f.BuildInvocation(Params{Prompt: "fix the bug", Model: "o3"}, []string{"--sandbox", "workspace-write"})

	require.Equal(t, []string{
		"exec",
		"--json", "--color", "never",
		"--sandbox", "workspace-write",
		"--model", "o3",
		"fix the bug",
	}, inv.Args)
}

func TestCodexInvocationResumeDropsPrompt(t *testing.T) {
	f := &CodexFamily{}
	inv := f.BuildInvocation(Params{Prompt: "and now?", SessionID: "t-1"}, nil)

	require.Equal(t, []string{"exec", "resume", "t-1", "--json", "--color", "never"}, inv.Args)
	assert.Empty(t, inv.Stdin)
}

func TestCodexLongPromptUsesStdinDash(t *testing.T) {
	f := &CodexFamily{}
	prompt := strings.Repeat("y", stdinPromptThreshold+1)
	inv := f.BuildInvocation(Params{Prompt: prompt}, nil)

	assert.Equal(t, prompt, inv.Stdin)
	assert.Equal(t, "-", inv.Args[len(inv.Args)-1])
}

func TestCodexAuthEnvStripsAnthropicKey(t *testing.T) {
	f := &CodexFamily{}
	env, strip := f.AuthEnv(Params{Auth: auth.Resolved{Mode: auth.ModeAPIKey, APIKey: "sk-oai"}})

	assert.Equal(t, "sk-oai", env["OPENAI_API_KEY"])
	assert.Contains(t, strip, "ANTHROPIC_API_KEY")

	_, strip = f.AuthEnv(Params{Auth: auth.Resolved{Mode: auth.ModeAWSSDK}})
	assert.Contains(t, strip, "ANTHROPIC_API_KEY")
}

func TestGeminiInvocation(t *testing.T) {
	f := &GeminiFamily{}
	inv := f.BuildInvocation(Params{Prompt: "list files", SessionID: "g-1"}, nil)

	require.Equal(t, []string{"--output-format", "stream-json", "-r", "g-1", "-p", "list files"}, inv.Args)

	prompt := strings.Repeat("z", stdinPromptThreshold+1)
	inv = f.BuildInvocation(Params{Prompt: prompt}, nil)
	assert.Equal(t, prompt, inv.Stdin)
	assert.NotContains(t, inv.Args, "-p")
}

func TestGeminiTurnLimitExit(t *testing.T) {
	f := &GeminiFamily{}

	msg, cat, ok := f.ClassifyExit(53, "Max turns (5) exceeded")
	require.True(t, ok)
	assert.Equal(t, "Max turns (5) exceeded", msg)
	assert.Equal(t, events.CategoryFatal, cat)

	msg, _, ok = f.ClassifyExit(53, "")
	require.True(t, ok)
	assert.Equal(t, "Turn limit exceeded", msg)

	_, _, ok = f.ClassifyExit(1, "boom")
	assert.False(t, ok)
}

func TestOpenCodeInvocation(t *testing.T) {
	f := &OpenCodeFamily{}
	inv := f.BuildInvocation(Params{Prompt: "hi", SessionID: "ses_1", Model: "sonnet"}, nil)

	require.Equal(t, []string{
		"--format", "json", "--quiet",
		"--model", "sonnet",
		"--session", "ses_1",
		"--prompt", "hi",
	}, inv.Args)

	prompt := strings.Repeat("p", stdinPromptThreshold+1)
	inv = f.BuildInvocation(Params{Prompt: prompt}, nil)
	assert.Equal(t, prompt, inv.Stdin)
	assert.NotContains(t, inv.Args, "--prompt")
}

func TestOpenCodeAuthEnv(t *testing.T) {
	f := &OpenCodeFamily{}
	env, _ := f.AuthEnv(Params{Auth: auth.Resolved{Mode: auth.ModeToken, APIKey: "tok-2"}})
	assert.Equal(t, "tok-2", env["ANTHROPIC_API_KEY"])
}
