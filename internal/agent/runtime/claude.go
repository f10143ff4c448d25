package runtime

import (
	"strconv"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/protocol"
)

// ClaudeFamily drives the Claude Code CLI in stream-json mode.
type ClaudeFamily struct{}

func (f *ClaudeFamily) ID() string             { return "claude" }
func (f *ClaudeFamily) DefaultCommand() string { return "claude" }

func (f *ClaudeFamily) BuildInvocation(p Params, extraArgs []string) Invocation {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
	}
	args = append(args, extraArgs...)
	if p.Model != "" {
		args = append(args, "--model", p.Model)
	}
	if p.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(p.MaxTurns))
	}
	if p.SessionID != "" {
		args = append(args, "--resume", p.SessionID)
	}
	if len(p.Prompt) > stdinPromptThreshold {
		return Invocation{Args: args, Stdin: p.Prompt}
	}
	return Invocation{Args: append(args, p.Prompt)}
}

func (f *ClaudeFamily) AuthEnv(p Params) (map[string]string, []string) {
	// CLAUDECODE is always cleared so a gateway running inside a Claude
	// Code session does not leak nested-session detection to the child.
	env := map[string]string{"CLAUDECODE": ""}
	switch p.Auth.Mode {
	case auth.ModeAPIKey:
		env["ANTHROPIC_API_KEY"] = p.Auth.APIKey
	case auth.ModeToken, auth.ModeOAuth:
		env["CLAUDE_CODE_OAUTH_TOKEN"] = p.Auth.APIKey
	case auth.ModeAWSSDK:
		// Bedrock: the child reads AWS credentials from the inherited
		// environment.
	}
	return env, nil
}

func (f *ClaudeFamily) NewParser() protocol.LineParser { return protocol.NewClaudeParser() }

func (f *ClaudeFamily) ClassifyExit(code int, stderr string) (string, events.ErrorCategory, bool) {
	return "", "", false
}
