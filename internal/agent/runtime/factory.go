package runtime

import (
	"fmt"
	"strings"

	"github.com/remoteclaw/remoteclaw/internal/common/logger"
)

// providerAliases folds marketing and legacy names onto canonical provider
// ids before runtime selection.
var providerAliases = map[string]string{
	"anthropic":    "claude",
	"claude-code":  "claude",
	"openai":       "codex",
	"google":       "gemini",
	"z.ai":         "zai",
	"opencode-zen": "opencode",
	"qwen":         "qwen-portal",
}

// NormalizeProvider lower-cases a provider id and applies the alias table.
func NormalizeProvider(provider string) string {
	id := strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[id]; ok {
		return canonical
	}
	return id
}

// NewForProvider builds a configured Runner for the provider. Unknown
// providers run on the Claude family when the operator configured a backend
// for them; with no backend they fail.
func NewForProvider(provider string, backends map[string]*Backend, log *logger.Logger) (*Runner, error) {
	id := NormalizeProvider(provider)
	backend := backends[id]

	switch id {
	case "claude":
		return NewRunner(&ClaudeFamily{}, backend, log), nil
	case "codex":
		return NewRunner(&CodexFamily{}, backend, log), nil
	case "gemini":
		return NewRunner(&GeminiFamily{}, backend, log), nil
	case "opencode":
		return NewRunner(&OpenCodeFamily{}, backend, log), nil
	}

	if backend != nil {
		return NewRunner(&ClaudeFamily{}, backend, log), nil
	}
	return nil, fmt.Errorf("No CLI runtime registered for provider: %s", id)
}
