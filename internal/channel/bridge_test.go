package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	agentevents "github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/runtime"
	"github.com/remoteclaw/remoteclaw/internal/common/logger"
	"github.com/remoteclaw/remoteclaw/internal/events/bus"
	"github.com/remoteclaw/remoteclaw/internal/session"
)

// fakeRuntime replays a canned event stream and records the params it was
// called with.
type fakeRuntime struct {
	mu     sync.Mutex
	events []agentevents.AgentEvent
	params []runtime.Params
}

func (f *fakeRuntime) Execute(ctx context.Context, p runtime.Params) <-chan agentevents.AgentEvent {
	f.mu.Lock()
	f.params = append(f.params, p)
	f.mu.Unlock()

	ch := make(chan agentevents.AgentEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func (f *fakeRuntime) lastParams(t *testing.T) runtime.Params {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.params)
	return f.params[len(f.params)-1]
}

func okAuth(provider string) (auth.Resolved, error) {
	return auth.Resolved{Mode: auth.ModeAPIKey, APIKey: "sk-test", Source: "profile:test"}, nil
}

func doneEvent(result agentevents.RunResult) agentevents.AgentEvent {
	return agentevents.AgentEvent{Kind: agentevents.KindDone, Result: &result}
}

func newTestBridge(t *testing.T, rt AgentRuntime, eventBus bus.EventBus) (*Bridge, *session.Store) {
	t.Helper()
	sessions := session.NewStore(t.TempDir(), 0, logger.Default())
	b := NewBridge(rt, sessions, okAuth, eventBus, Options{
		Provider:     "claude",
		WorkspaceDir: t.TempDir(),
		Timeout:      time.Minute,
	}, logger.Default())
	return b, sessions
}

func TestHandleSuccessfulTurn(t *testing.T) {
	rt := &fakeRuntime{events: []agentevents.AgentEvent{
		{Kind: agentevents.KindText, Text: "Hel"},
		{Kind: agentevents.KindText, Text: "lo"},
		doneEvent(agentevents.RunResult{Text: "Hello", SessionID: "s-1", DurationMS: 42}),
	}}
	b, sessions := newTestBridge(t, rt, nil)

	var streamed []string
	reply := b.Handle(context.Background(), Message{ChannelID: "C1", UserID: "U1", Text: "hi"}, &Callbacks{
		OnPartialText: func(ctx context.Context, text string) error {
			streamed = append(streamed, text)
			return nil
		},
	})

	assert.Equal(t, "Hello", reply.Text)
	assert.Equal(t, "s-1", reply.SessionID)
	assert.Equal(t, int64(42), reply.DurationMS)
	assert.Empty(t, reply.Error)
	assert.Equal(t, []string{"Hel", "lo"}, streamed)

	sid, ok := sessions.Get(session.Key{ChannelID: "C1", UserID: "U1"})
	require.True(t, ok)
	assert.Equal(t, "s-1", sid)
}

func TestHandleResumesExistingSession(t *testing.T) {
	rt := &fakeRuntime{events: []agentevents.AgentEvent{
		doneEvent(agentevents.RunResult{SessionID: "s-old"}),
	}}
	b, sessions := newTestBridge(t, rt, nil)
	key := session.Key{ChannelID: "C1", UserID: "U1", ThreadID: "T1"}
	require.NoError(t, sessions.Set(key, "s-old"))

	b.Handle(context.Background(), Message{ChannelID: "C1", UserID: "U1", ThreadID: "T1", Text: "more"}, nil)

	p := rt.lastParams(t)
	assert.Equal(t, "s-old", p.SessionID)
	assert.Equal(t, "more", p.Prompt)
	assert.Equal(t, "sk-test", p.Auth.APIKey)
}

func TestHandleAuthFailure(t *testing.T) {
	rt := &fakeRuntime{}
	sessions := session.NewStore(t.TempDir(), 0, logger.Default())
	b := NewBridge(rt, sessions, func(provider string) (auth.Resolved, error) {
		return auth.Resolved{}, errors.New("no usable credential for provider \"claude\"")
	}, nil, Options{Provider: "claude"}, logger.Default())

	reply := b.Handle(context.Background(), Message{ChannelID: "C1", UserID: "U1", Text: "hi"}, nil)

	assert.Empty(t, reply.Text)
	assert.Contains(t, reply.Error, "no usable credential")
	rt.mu.Lock()
	assert.Empty(t, rt.params, "runtime must not start without credentials")
	rt.mu.Unlock()
}

func TestHandleErrorEventBecomesReplyError(t *testing.T) {
	rt := &fakeRuntime{events: []agentevents.AgentEvent{
		{Kind: agentevents.KindError, Message: "Timed out after 1000ms", Category: agentevents.CategoryTimeout},
		doneEvent(agentevents.RunResult{Aborted: true, DurationMS: 1000}),
	}}
	b, _ := newTestBridge(t, rt, nil)

	var seen string
	reply := b.Handle(context.Background(), Message{ChannelID: "C1", UserID: "U1", Text: "hi"}, &Callbacks{
		OnError: func(ctx context.Context, message string) error {
			seen = message
			return nil
		},
	})

	assert.Equal(t, "Timed out after 1000ms", reply.Error)
	assert.Equal(t, "Timed out after 1000ms", seen)
	assert.True(t, reply.Aborted)
	assert.Empty(t, reply.Text)
}

func TestHandleCallbackFailuresDoNotStopTurn(t *testing.T) {
	rt := &fakeRuntime{events: []agentevents.AgentEvent{
		{Kind: agentevents.KindText, Text: "a"},
		{Kind: agentevents.KindStatus, Status: "thinking"},
		{Kind: agentevents.KindText, Text: "b"},
		doneEvent(agentevents.RunResult{Text: "ab", SessionID: "s-2"}),
	}}
	b, _ := newTestBridge(t, rt, nil)

	var texts []string
	reply := b.Handle(context.Background(), Message{ChannelID: "C1", UserID: "U1", Text: "hi"}, &Callbacks{
		OnPartialText: func(ctx context.Context, text string) error {
			texts = append(texts, text)
			return errors.New("delivery failed")
		},
		OnStatus: func(ctx context.Context, status string) error {
			panic("status handler blew up")
		},
	})

	assert.Equal(t, []string{"a", "b"}, texts)
	assert.Equal(t, "ab", reply.Text)
	assert.Empty(t, reply.Error)
}

func TestHandleNoSessionMeansNoUpsert(t *testing.T) {
	rt := &fakeRuntime{events: []agentevents.AgentEvent{
		doneEvent(agentevents.RunResult{Text: "ok"}),
	}}
	b, sessions := newTestBridge(t, rt, nil)

	b.Handle(context.Background(), Message{ChannelID: "C1", UserID: "U1", Text: "hi"}, nil)

	_, ok := sessions.Get(session.Key{ChannelID: "C1", UserID: "U1"})
	assert.False(t, ok)
}

func TestHandlePublishesTurnEvents(t *testing.T) {
	rt := &fakeRuntime{events: []agentevents.AgentEvent{
		{Kind: agentevents.KindText, Text: "hi"},
		doneEvent(agentevents.RunResult{Text: "hi", SessionID: "s-3"}),
	}}
	eventBus := bus.NewMemoryEventBus(logger.Default())
	defer eventBus.Close()
	b, _ := newTestBridge(t, rt, eventBus)

	var mu sync.Mutex
	var subjects []string
	record := func(subject string) {
		_, err := eventBus.Subscribe(subject, func(ctx context.Context, e *bus.Event) error {
			mu.Lock()
			subjects = append(subjects, e.Type)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}
	record("turn.started")
	record("turn.completed")
	record("agent.stream.>")

	b.Handle(context.Background(), Message{ChannelID: "C1", UserID: "U1", Text: "hi"}, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(subjects)
		mu.Unlock()
		if n >= 4 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, subjects, "turn.started")
	assert.Contains(t, subjects, "turn.completed")
	assert.Contains(t, subjects, "text")
	assert.Contains(t, subjects, "done", "stream subscribers must observe termination")
}
