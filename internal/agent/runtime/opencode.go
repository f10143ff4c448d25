package runtime

import (
	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/protocol"
)

// OpenCodeFamily drives the OpenCode CLI in quiet JSON mode.
type OpenCodeFamily struct{}

func (f *OpenCodeFamily) ID() string             { return "opencode" }
func (f *OpenCodeFamily) DefaultCommand() string { return "opencode" }

func (f *OpenCodeFamily) BuildInvocation(p Params, extraArgs []string) Invocation {
	args := []string{"--format", "json", "--quiet"}
	args = append(args, extraArgs...)
	if p.Model != "" {
		args = append(args, "--model", p.Model)
	}
	if p.SessionID != "" {
		args = append(args, "--session", p.SessionID)
	}
	if len(p.Prompt) > stdinPromptThreshold {
		return Invocation{Args: args, Stdin: p.Prompt}
	}
	return Invocation{Args: append(args, "--prompt", p.Prompt)}
}

func (f *OpenCodeFamily) AuthEnv(p Params) (map[string]string, []string) {
	env := map[string]string{}
	switch p.Auth.Mode {
	case auth.ModeAPIKey, auth.ModeToken, auth.ModeOAuth:
		env["ANTHROPIC_API_KEY"] = p.Auth.APIKey
	case auth.ModeAWSSDK:
	}
	return env, nil
}

func (f *OpenCodeFamily) NewParser() protocol.LineParser { return protocol.NewOpenCodeParser() }

func (f *OpenCodeFamily) ClassifyExit(code int, stderr string) (string, events.ErrorCategory, bool) {
	return "", "", false
}
