// Package events defines the gateway's event bus subjects.
package events

// Event types for turns. A turn is one bridged message: prompt in, reply out.
const (
	TurnStarted   = "turn.started"
	TurnCompleted = "turn.completed"
	TurnFailed    = "turn.failed"
)

// AgentStream is the base subject for live agent events relayed during a turn.
const AgentStream = "agent.stream"

// BuildAgentStreamSubject creates an agent stream subject for one session key.
func BuildAgentStreamSubject(sessionKey string) string {
	return AgentStream + "." + sessionKey
}

// BuildAgentStreamWildcardSubject creates a wildcard subscription for all
// agent stream events.
func BuildAgentStreamWildcardSubject() string {
	return AgentStream + ".>"
}
