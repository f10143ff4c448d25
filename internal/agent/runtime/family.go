package runtime

import (
	"time"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/protocol"
)

// stdinPromptThreshold is the prompt length above which the prompt moves
// from argv to stdin.
const stdinPromptThreshold = 10000

// Params describes one runtime execution.
type Params struct {
	Prompt string
	// SessionID resumes a previous conversation when non-empty.
	SessionID string
	// WorkspaceDir is the child's working directory.
	WorkspaceDir string
	Model        string
	MaxTurns     int
	// Timeout is the total wall-clock bound; 0 disables it.
	Timeout time.Duration
	Auth    auth.Resolved
}

// Backend is the operator-supplied configuration for one provider's runtime:
// command override, extra argv, extra env, env keys to strip from the
// inherited environment, and watchdog overrides.
type Backend struct {
	Command               string            `mapstructure:"command" json:"command,omitempty"`
	Args                  []string          `mapstructure:"args" json:"args,omitempty"`
	Env                   map[string]string `mapstructure:"env" json:"env,omitempty"`
	ClearEnv              []string          `mapstructure:"clearEnv" json:"clearEnv,omitempty"`
	FreshNoOutputTimeout  time.Duration     `mapstructure:"freshNoOutputTimeout" json:"freshNoOutputTimeout,omitempty"`
	ResumeNoOutputTimeout time.Duration     `mapstructure:"resumeNoOutputTimeout" json:"resumeNoOutputTimeout,omitempty"`
}

// Invocation is a fully built argv tail plus the stdin payload. An empty
// Stdin means stdin is closed immediately after spawn.
type Invocation struct {
	Args  []string
	Stdin string
}

// Family captures what differs between the supported CLI protocols: command
// name, argv layering, auth env mapping, parser, and exit-code policy. The
// shared Runner drives everything else.
type Family interface {
	ID() string
	DefaultCommand() string

	// BuildInvocation applies the argv layering contract: intrinsic
	// protocol flags, then operator extraArgs, then per-invocation flags,
	// then the prompt (moved to stdin above stdinPromptThreshold).
	BuildInvocation(p Params, extraArgs []string) Invocation

	// AuthEnv returns the auth-derived environment overlay (applied last,
	// so it wins) and inherited keys that must be stripped.
	AuthEnv(p Params) (env map[string]string, strip []string)

	// NewParser returns a fresh parser for one execution.
	NewParser() protocol.LineParser

	// ClassifyExit lets a family override non-zero exit interpretation.
	// ok=false defers to the default stderr classification.
	ClassifyExit(code int, stderr string) (msg string, cat events.ErrorCategory, ok bool)
}
