package runtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/protocol"
	"github.com/remoteclaw/remoteclaw/internal/common/logger"
)

// echoParser turns every stdout line into a text event. Lines of the form
// "SESSION <id>" carry a session id instead.
type echoParser struct{}

func (echoParser) ParseLine(line string) []events.ParsedLine {
	if line == "" {
		return nil
	}
	if sid, ok := strings.CutPrefix(line, "SESSION "); ok {
		return []events.ParsedLine{{SessionID: sid}}
	}
	return []events.ParsedLine{{Event: &events.AgentEvent{Kind: events.KindText, Text: line}}}
}

// shellFamily runs an inline shell script so runner behaviour can be tested
// without a real agent CLI.
type shellFamily struct {
	script string
	stdin  string
}

func (f *shellFamily) ID() string             { return "shell" }
func (f *shellFamily) DefaultCommand() string { return "/bin/sh" }
func (f *shellFamily) BuildInvocation(p Params, extraArgs []string) Invocation {
	return Invocation{Args: []string{"-c", f.script}, Stdin: f.stdin}
}
func (f *shellFamily) AuthEnv(p Params) (map[string]string, []string) { return nil, nil }
func (f *shellFamily) NewParser() protocol.LineParser                 { return echoParser{} }
func (f *shellFamily) ClassifyExit(code int, stderr string) (string, events.ErrorCategory, bool) {
	return "", "", false
}

// envShellFamily is a shellFamily with a fixed auth env overlay and strip
// list, for exercising the env layering through a real child.
type envShellFamily struct {
	shellFamily
	overlay map[string]string
	strip   []string
}

func (f *envShellFamily) AuthEnv(p Params) (map[string]string, []string) {
	return f.overlay, f.strip
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

func collect(t *testing.T, ch <-chan events.AgentEvent) []events.AgentEvent {
	t.Helper()
	var got []events.AgentEvent
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatal("event stream did not close")
		}
	}
}

func runShell(t *testing.T, family *shellFamily, backend *Backend, p Params) []events.AgentEvent {
	t.Helper()
	r := NewRunner(family, backend, logger.Default())
	return collect(t, r.Execute(context.Background(), p))
}

func terminalDone(t *testing.T, got []events.AgentEvent) events.RunResult {
	t.Helper()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.Equal(t, events.KindDone, last.Kind)
	require.NotNil(t, last.Result)
	for _, ev := range got[:len(got)-1] {
		require.NotEqual(t, events.KindDone, ev.Kind, "done must be the single terminal event")
	}
	return *last.Result
}

func TestRunnerStreamsAndAccumulates(t *testing.T) {
	fam := &shellFamily{script: `printf 'SESSION s-9\nhello \nworld\n'`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 10 * time.Second}, Params{})

	result := terminalDone(t, got)
	require.Len(t, got, 3)
	assert.Equal(t, "hello ", got[0].Text)
	assert.Equal(t, "world", got[1].Text)
	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, "s-9", result.SessionID)
	assert.False(t, result.Aborted)
}

func TestRunnerFlushesPartialLastLine(t *testing.T) {
	fam := &shellFamily{script: `printf 'no trailing newline'`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 10 * time.Second}, Params{})

	result := terminalDone(t, got)
	require.Len(t, got, 2)
	assert.Equal(t, "no trailing newline", got[0].Text)
	assert.Equal(t, "no trailing newline", result.Text)
}

func TestRunnerEmptyOutputStillEmitsDone(t *testing.T) {
	fam := &shellFamily{script: `exit 0`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 10 * time.Second}, Params{})

	result := terminalDone(t, got)
	require.Len(t, got, 1)
	assert.Empty(t, result.Text)
	assert.False(t, result.Aborted)
}

func TestRunnerClassifiesStderrOnNonZeroExit(t *testing.T) {
	fam := &shellFamily{script: `echo 'rate limit exceeded' >&2; exit 1`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 10 * time.Second}, Params{})

	result := terminalDone(t, got)
	require.Len(t, got, 2)
	assert.Equal(t, events.KindError, got[0].Kind)
	assert.Equal(t, "rate limit exceeded", got[0].Message)
	assert.Equal(t, events.CategoryRetryable, got[0].Category)
	assert.False(t, result.Aborted)
}

func TestRunnerReportsExitCodeWhenStderrEmpty(t *testing.T) {
	fam := &shellFamily{script: `exit 3`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 10 * time.Second}, Params{})

	terminalDone(t, got)
	require.Len(t, got, 2)
	assert.Equal(t, "Process exited with code 3", got[0].Message)
	assert.Equal(t, events.CategoryFatal, got[0].Category)
}

func TestRunnerTotalTimeout(t *testing.T) {
	fam := &shellFamily{script: `exec sleep 30`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 60 * time.Second}, Params{
		Timeout: 200 * time.Millisecond,
	})

	result := terminalDone(t, got)
	require.Len(t, got, 2)
	assert.Equal(t, events.KindError, got[0].Kind)
	assert.Equal(t, "Timed out after 200ms", got[0].Message)
	assert.Equal(t, events.CategoryTimeout, got[0].Category)
	assert.True(t, result.Aborted)
}

func TestRunnerWatchdogKillsSilentChild(t *testing.T) {
	fam := &shellFamily{script: `echo started; exec sleep 30`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: time.Second}, Params{})

	result := terminalDone(t, got)
	require.Len(t, got, 3)
	assert.Equal(t, "started", got[0].Text)
	assert.Equal(t, "No output for 1000ms (watchdog)", got[1].Message)
	assert.Equal(t, events.CategoryTimeout, got[1].Category)
	assert.True(t, result.Aborted)
}

func TestRunnerWatchdogIgnoresOutputAfterFire(t *testing.T) {
	// The background subshell keeps the stdout pipe open past the kill and
	// writes one late chunk; that chunk must not re-arm the fired watchdog
	// or change the terminal sequence.
	fam := &shellFamily{script: `(sleep 2; echo late) & exec sleep 30`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: time.Second}, Params{})

	result := terminalDone(t, got)
	require.Len(t, got, 3)
	assert.Equal(t, "late", got[0].Text)
	assert.Equal(t, events.KindError, got[1].Kind)
	assert.Equal(t, "No output for 1000ms (watchdog)", got[1].Message)
	assert.True(t, result.Aborted)
}

func TestBuildEnvLayering(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-inherited")
	t.Setenv("CLEARED_BY_BACKEND", "inherited")
	t.Setenv("KEPT_FROM_PARENT", "inherited")

	r := NewRunner(&CodexFamily{}, &Backend{
		ClearEnv: []string{"CLEARED_BY_BACKEND"},
		Env: map[string]string{
			"BACKEND_VAR":    "from-backend",
			"OPENAI_API_KEY": "from-backend",
		},
	}, logger.Default())

	env := envMap(r.buildEnv(Params{
		Auth: auth.Resolved{Mode: auth.ModeAPIKey, APIKey: "sk-oai"},
	}))

	assert.NotContains(t, env, "ANTHROPIC_API_KEY", "family strip list must be applied")
	assert.NotContains(t, env, "CLEARED_BY_BACKEND", "backend clearEnv must be applied")
	assert.Equal(t, "inherited", env["KEPT_FROM_PARENT"])
	assert.Equal(t, "from-backend", env["BACKEND_VAR"])
	assert.Equal(t, "sk-oai", env["OPENAI_API_KEY"], "auth overlay wins over backend env")
}

func TestRunnerChildSeesLayeredEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-inherited")
	t.Setenv("CLEARED_BY_BACKEND", "inherited")

	fam := &envShellFamily{
		shellFamily: shellFamily{
			script: `echo "A=${ANTHROPIC_API_KEY:-unset} C=${CLEARED_BY_BACKEND:-unset} B=${BACKEND_VAR:-unset} O=${OPENAI_API_KEY:-unset}"`,
		},
		overlay: map[string]string{"OPENAI_API_KEY": "sk-oai"},
		strip:   []string{"ANTHROPIC_API_KEY"},
	}
	r := NewRunner(fam, &Backend{
		FreshNoOutputTimeout: 10 * time.Second,
		ClearEnv:             []string{"CLEARED_BY_BACKEND"},
		Env:                  map[string]string{"BACKEND_VAR": "from-backend", "OPENAI_API_KEY": "from-backend"},
	}, logger.Default())
	got := collect(t, r.Execute(context.Background(), Params{}))

	result := terminalDone(t, got)
	assert.Equal(t, "A=unset C=unset B=from-backend O=sk-oai", result.Text)
}

func TestRunnerAbortViaContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fam := &shellFamily{script: `exec sleep 30`}
	r := NewRunner(fam, &Backend{FreshNoOutputTimeout: 60 * time.Second}, logger.Default())

	ch := r.Execute(ctx, Params{})
	time.Sleep(100 * time.Millisecond)
	cancel()
	got := collect(t, ch)

	result := terminalDone(t, got)
	require.Len(t, got, 2)
	assert.Equal(t, "Aborted", got[0].Message)
	assert.Equal(t, events.CategoryAborted, got[0].Category)
	assert.True(t, result.Aborted)
}

func TestRunnerWritesStdinPayload(t *testing.T) {
	fam := &shellFamily{script: `cat`, stdin: "prompt via stdin\n"}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 10 * time.Second}, Params{})

	result := terminalDone(t, got)
	assert.Equal(t, "prompt via stdin", result.Text)
}

func TestRunnerSpawnFailure(t *testing.T) {
	r := NewRunner(&ClaudeFamily{}, &Backend{Command: "/nonexistent/bin/claude"}, logger.Default())
	got := collect(t, r.Execute(context.Background(), Params{Prompt: "hi"}))

	result := terminalDone(t, got)
	require.Len(t, got, 2)
	assert.Equal(t, events.KindError, got[0].Kind)
	assert.Equal(t, events.CategoryFatal, got[0].Category)
	assert.False(t, result.Aborted)
}

func TestRunnerKeepsResumeSessionWhenChildEmitsNone(t *testing.T) {
	fam := &shellFamily{script: `echo ok`}
	got := runShell(t, fam, &Backend{FreshNoOutputTimeout: 10 * time.Second}, Params{SessionID: "old-session"})

	result := terminalDone(t, got)
	assert.Equal(t, "old-session", result.SessionID)
}

func TestWatchdogPeriodDefaults(t *testing.T) {
	r := NewRunner(&ClaudeFamily{}, nil, logger.Default())

	// 0.8 x 300s = 240s, inside the clamp.
	assert.Equal(t, 240*time.Second, r.watchdogPeriod(Params{Timeout: 5 * time.Minute}))
	// Short totals clamp to the fresh floor.
	assert.Equal(t, 3*time.Minute, r.watchdogPeriod(Params{Timeout: time.Minute}))
	// Resume floor is higher.
	assert.Equal(t, 5*time.Minute, r.watchdogPeriod(Params{Timeout: time.Minute, SessionID: "s"}))
	// Long totals clamp to the ceiling.
	assert.Equal(t, 10*time.Minute, r.watchdogPeriod(Params{Timeout: time.Hour}))
}

func TestWatchdogPeriodBackendOverrides(t *testing.T) {
	r := NewRunner(&ClaudeFamily{}, &Backend{
		FreshNoOutputTimeout:  30 * time.Second,
		ResumeNoOutputTimeout: 100 * time.Millisecond,
	}, logger.Default())

	assert.Equal(t, 30*time.Second, r.watchdogPeriod(Params{Timeout: time.Hour}))
	// Explicit overrides are floored at one second.
	assert.Equal(t, time.Second, r.watchdogPeriod(Params{SessionID: "s"}))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "sk-a…yz", MaskSecret("sk-ant-api-key-xyz"))
}
