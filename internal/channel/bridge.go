// Package channel bridges chat messages to agent runtimes: one Handle call
// runs one turn, streaming events to caller callbacks and persisting the
// resulting session id so the next message in the same thread resumes it.
package channel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	agentevents "github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/runtime"
	"github.com/remoteclaw/remoteclaw/internal/common/logger"
	"github.com/remoteclaw/remoteclaw/internal/common/tracing"
	"github.com/remoteclaw/remoteclaw/internal/events"
	"github.com/remoteclaw/remoteclaw/internal/events/bus"
	"github.com/remoteclaw/remoteclaw/internal/session"
)

// AgentRuntime is the slice of the runtime the bridge needs.
type AgentRuntime interface {
	Execute(ctx context.Context, p runtime.Params) <-chan agentevents.AgentEvent
}

// AuthFunc resolves the credential to use for the configured provider.
type AuthFunc func(provider string) (auth.Resolved, error)

// Options carries the per-turn defaults the bridge applies to every message.
type Options struct {
	Provider     string
	WorkspaceDir string
	Model        string
	MaxTurns     int
	Timeout      time.Duration
}

// Bridge turns messages into runtime executions. It holds no per-turn state;
// the session map is the only thing shared across calls.
type Bridge struct {
	rt       AgentRuntime
	sessions *session.Store
	resolve  AuthFunc
	bus      bus.EventBus
	opts     Options
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewBridge creates a bridge. eventBus may be nil when no fan-out is wanted.
func NewBridge(rt AgentRuntime, sessions *session.Store, resolve AuthFunc, eventBus bus.EventBus, opts Options, log *logger.Logger) *Bridge {
	return &Bridge{
		rt:       rt,
		sessions: sessions,
		resolve:  resolve,
		bus:      eventBus,
		opts:     opts,
		logger: log.WithFields(
			zap.String("component", "channel-bridge"),
			zap.String("provider", opts.Provider),
		),
		tracer: tracing.Tracer("remoteclaw/channel"),
	}
}

// Handle runs one turn: resume lookup, auth, execution, callback dispatch,
// session upsert. Cancelling ctx aborts the child process. The returned
// Reply always reflects the turn's terminal state; a failed turn carries a
// non-empty Error.
func (b *Bridge) Handle(ctx context.Context, msg Message, cb *Callbacks) Reply {
	ctx, span := b.tracer.Start(ctx, "bridge.handle",
		trace.WithAttributes(
			attribute.String("provider", b.opts.Provider),
			attribute.String("channel_id", msg.ChannelID),
		))
	defer span.End()

	key := session.Key{ChannelID: msg.ChannelID, UserID: msg.UserID, ThreadID: msg.ThreadID}
	log := b.logger.WithChannelID(msg.ChannelID)

	existing, resuming := b.sessions.Get(key)
	if resuming {
		log = log.WithFields(zap.String("session_id", existing))
	}

	resolved, err := b.resolve(b.opts.Provider)
	if err != nil {
		log.Warn("credential resolution failed", zap.Error(err))
		reply := Reply{Error: err.Error()}
		b.publishTurn(ctx, events.TurnFailed, key, &reply)
		return reply
	}

	b.publishTurn(ctx, events.TurnStarted, key, nil)
	log.Info("starting turn", zap.Bool("resume", resuming), zap.Int("prompt_len", len(msg.Text)))

	stream := b.rt.Execute(ctx, runtime.Params{
		Prompt:       msg.Text,
		SessionID:    existing,
		WorkspaceDir: b.opts.WorkspaceDir,
		Model:        b.opts.Model,
		MaxTurns:     b.opts.MaxTurns,
		Timeout:      b.opts.Timeout,
		Auth:         resolved,
	})

	var result *agentevents.RunResult
	var lastError string
	for ev := range stream {
		switch ev.Kind {
		case agentevents.KindDone:
			result = ev.Result
		case agentevents.KindError:
			lastError = ev.Message
		}
		b.dispatch(ctx, cb, ev)
		b.publishStream(ctx, key, ev)
	}

	if result == nil {
		// The runtime contract guarantees a done event; guard anyway so a
		// broken stream still produces a coherent reply.
		result = &agentevents.RunResult{}
	}

	if result.SessionID != "" {
		if err := b.sessions.Set(key, result.SessionID); err != nil {
			log.Error("failed to persist session id",
				zap.String("session_id", result.SessionID), zap.Error(err))
		}
	}

	reply := Reply{
		Text:              result.Text,
		SessionID:         result.SessionID,
		DurationMS:        result.DurationMS,
		Usage:             result.Usage,
		Aborted:           result.Aborted,
		Error:             lastError,
		TotalCostUSD:      result.TotalCostUSD,
		APIDurationMS:     result.APIDurationMS,
		NumTurns:          result.NumTurns,
		StopReason:        result.StopReason,
		ErrorSubtype:      result.ErrorSubtype,
		PermissionDenials: result.PermissionDenials,
	}

	subject := events.TurnCompleted
	if reply.Error != "" {
		subject = events.TurnFailed
	}
	b.publishTurn(ctx, subject, key, &reply)

	log.Info("turn finished",
		zap.Int64("duration_ms", reply.DurationMS),
		zap.Bool("aborted", reply.Aborted),
		zap.String("error", reply.Error))
	return reply
}

// dispatch routes one event to its callback. Callback errors are logged and
// swallowed; a panicking callback must not kill the stream iteration.
func (b *Bridge) dispatch(ctx context.Context, cb *Callbacks, ev agentevents.AgentEvent) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("callback panicked",
				zap.String("event_kind", string(ev.Kind)),
				zap.Any("panic", r))
		}
	}()

	var err error
	switch ev.Kind {
	case agentevents.KindText:
		if cb.OnPartialText != nil {
			err = cb.OnPartialText(ctx, ev.Text)
		}
	case agentevents.KindToolUse:
		if cb.OnToolUse != nil {
			err = cb.OnToolUse(ctx, ev)
		}
	case agentevents.KindToolResult:
		if cb.OnToolResult != nil {
			err = cb.OnToolResult(ctx, ev)
		}
	case agentevents.KindToolProgress:
		if cb.OnToolProgress != nil {
			err = cb.OnToolProgress(ctx, ev)
		}
	case agentevents.KindToolSummary:
		if cb.OnToolSummary != nil {
			err = cb.OnToolSummary(ctx, ev)
		}
	case agentevents.KindStatus:
		if cb.OnStatus != nil {
			err = cb.OnStatus(ctx, ev.Status)
		}
	case agentevents.KindTaskStarted:
		if cb.OnTaskStarted != nil {
			err = cb.OnTaskStarted(ctx, ev)
		}
	case agentevents.KindTaskNotification:
		if cb.OnTaskNotification != nil {
			err = cb.OnTaskNotification(ctx, ev)
		}
	case agentevents.KindError:
		if cb.OnError != nil {
			err = cb.OnError(ctx, ev.Message)
		}
	}
	if err != nil {
		b.logger.Warn("callback failed",
			zap.String("event_kind", string(ev.Kind)),
			zap.Error(err))
	}
}

// publishStream relays every normalized event, the terminal done included,
// so stream-only subscribers observe termination.
func (b *Bridge) publishStream(ctx context.Context, key session.Key, ev agentevents.AgentEvent) {
	if b.bus == nil {
		return
	}
	event := bus.NewEvent(string(ev.Kind), "channel-bridge", map[string]interface{}{
		"event": ev,
	})
	if err := b.bus.Publish(ctx, events.BuildAgentStreamSubject(key.String()), event); err != nil {
		b.logger.Debug("stream publish failed", zap.Error(err))
	}
}

func (b *Bridge) publishTurn(ctx context.Context, eventType string, key session.Key, reply *Reply) {
	if b.bus == nil {
		return
	}
	data := map[string]interface{}{
		"session_key": key.String(),
		"provider":    b.opts.Provider,
	}
	if reply != nil {
		data["reply"] = reply
	}
	if err := b.bus.Publish(ctx, eventType, bus.NewEvent(eventType, "channel-bridge", data)); err != nil {
		b.logger.Debug("turn publish failed", zap.Error(err))
	}
}
