package runtime

import (
	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/protocol"
)

// CodexFamily drives the Codex CLI (`codex exec --json`).
type CodexFamily struct{}

func (f *CodexFamily) ID() string             { return "codex" }
func (f *CodexFamily) DefaultCommand() string { return "codex" }

func (f *CodexFamily) BuildInvocation(p Params, extraArgs []string) Invocation {
	args := []string{"exec"}
	if p.SessionID != "" {
		args = append(args, "resume", p.SessionID)
	}
	args = append(args, "--json", "--color", "never")
	args = append(args, extraArgs...)
	if p.Model != "" {
		args = append(args, "--model", p.Model)
	}
	if p.SessionID != "" {
		// Resumed threads carry their own context; the CLI rejects a
		// prompt positional after `resume`.
		return Invocation{Args: args}
	}
	if len(p.Prompt) > stdinPromptThreshold {
		return Invocation{Args: append(args, "-"), Stdin: p.Prompt}
	}
	return Invocation{Args: append(args, p.Prompt)}
}

func (f *CodexFamily) AuthEnv(p Params) (map[string]string, []string) {
	env := map[string]string{}
	if p.Auth.Mode == auth.ModeAPIKey {
		env["OPENAI_API_KEY"] = p.Auth.APIKey
	}
	// An inherited Anthropic key confuses Codex model routing.
	return env, []string{"ANTHROPIC_API_KEY"}
}

func (f *CodexFamily) NewParser() protocol.LineParser { return protocol.NewCodexParser() }

func (f *CodexFamily) ClassifyExit(code int, stderr string) (string, events.ErrorCategory, bool) {
	return "", "", false
}
