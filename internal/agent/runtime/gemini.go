package runtime

import (
	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/protocol"
)

// geminiTurnLimitExit is the Gemini CLI exit code for hitting the session
// turn limit.
const geminiTurnLimitExit = 53

// GeminiFamily drives the Gemini CLI in stream-json mode.
type GeminiFamily struct{}

func (f *GeminiFamily) ID() string             { return "gemini" }
func (f *GeminiFamily) DefaultCommand() string { return "gemini" }

func (f *GeminiFamily) BuildInvocation(p Params, extraArgs []string) Invocation {
	args := []string{"--output-format", "stream-json"}
	args = append(args, extraArgs...)
	if p.Model != "" {
		args = append(args, "--model", p.Model)
	}
	if p.SessionID != "" {
		args = append(args, "-r", p.SessionID)
	}
	if len(p.Prompt) > stdinPromptThreshold {
		return Invocation{Args: args, Stdin: p.Prompt}
	}
	return Invocation{Args: append(args, "-p", p.Prompt)}
}

func (f *GeminiFamily) AuthEnv(p Params) (map[string]string, []string) {
	env := map[string]string{}
	if p.Auth.Mode == auth.ModeAPIKey {
		env["GEMINI_API_KEY"] = p.Auth.APIKey
	}
	return env, nil
}

func (f *GeminiFamily) NewParser() protocol.LineParser { return protocol.NewGeminiParser() }

func (f *GeminiFamily) ClassifyExit(code int, stderr string) (string, events.ErrorCategory, bool) {
	if code == geminiTurnLimitExit {
		msg := stderr
		if msg == "" {
			msg = "Turn limit exceeded"
		}
		return msg, events.CategoryFatal, true
	}
	return "", "", false
}
