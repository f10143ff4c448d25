// Package runtime spawns provider CLIs as child processes and turns their
// NDJSON stdout into a stream of agent events. One Runner executes one
// provider family; every execution ends with exactly one done event carrying
// the accumulated result.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/remoteclaw/remoteclaw/internal/agent/classify"
	"github.com/remoteclaw/remoteclaw/internal/agent/events"
	"github.com/remoteclaw/remoteclaw/internal/agent/protocol"
	"github.com/remoteclaw/remoteclaw/internal/common/logger"
)

const (
	// sigtermGrace is how long an aborted child gets to exit after SIGTERM
	// before SIGKILL.
	sigtermGrace = 5 * time.Second

	watchdogCeiling     = 10 * time.Minute
	watchdogFreshFloor  = 3 * time.Minute
	watchdogResumeFloor = 5 * time.Minute
)

// Runner executes one provider family's CLI.
type Runner struct {
	family  Family
	backend *Backend
	logger  *logger.Logger
}

// NewRunner creates a Runner for the given family. backend may be nil when
// the operator configured nothing for the provider.
func NewRunner(family Family, backend *Backend, log *logger.Logger) *Runner {
	return &Runner{
		family:  family,
		backend: backend,
		logger: log.WithFields(
			zap.String("component", "agent-runtime"),
			zap.String("provider", family.ID()),
		),
	}
}

// Family returns the protocol family this runner drives.
func (r *Runner) Family() Family { return r.family }

// Execute spawns the CLI and returns the event stream. The channel always
// delivers exactly one terminal done event and is then closed. Cancelling ctx
// aborts the child (SIGTERM, then SIGKILL after a grace period).
func (r *Runner) Execute(ctx context.Context, p Params) <-chan events.AgentEvent {
	q := newEventQueue()
	go r.run(ctx, p, q)
	return q.Events()
}

// runState collects flags set from timer and abort goroutines.
type runState struct {
	mu            sync.Mutex
	aborted       bool
	totalExpired  bool
	watchdogFired bool
}

func (s *runState) set(f func(*runState)) {
	s.mu.Lock()
	f(s)
	s.mu.Unlock()
}

func (s *runState) snapshot() (aborted, totalExpired, watchdogFired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted, s.totalExpired, s.watchdogFired
}

func (r *Runner) run(ctx context.Context, p Params, q *eventQueue) {
	start := time.Now()
	log := r.logger
	if p.SessionID != "" {
		log = log.WithFields(zap.String("session_id", p.SessionID))
	}

	var extraArgs []string
	if r.backend != nil {
		extraArgs = r.backend.Args
	}
	inv := r.family.BuildInvocation(p, extraArgs)

	command := r.family.DefaultCommand()
	if r.backend != nil && r.backend.Command != "" {
		command = r.backend.Command
	}

	log.Info("starting agent process",
		zap.String("command", command),
		zap.Int("argc", len(inv.Args)),
		zap.Bool("resume", p.SessionID != ""),
		zap.Bool("prompt_via_stdin", inv.Stdin != ""),
		zap.String("auth_source", p.Auth.Source),
		zap.String("auth_key", MaskSecret(p.Auth.APIKey)))

	cmd := exec.Command(command, inv.Args...)
	cmd.Dir = p.WorkspaceDir
	cmd.Env = r.buildEnv(p)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		r.failStart(q, start, fmt.Sprintf("Failed to open stdin: %v", err))
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.failStart(q, start, fmt.Sprintf("Failed to open stdout: %v", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.failStart(q, start, fmt.Sprintf("Failed to open stderr: %v", err))
		return
	}

	if err := cmd.Start(); err != nil {
		r.failStart(q, start, fmt.Sprintf("Failed to start %s: %v", command, err))
		return
	}

	if inv.Stdin != "" {
		go func() {
			_, _ = io.WriteString(stdin, inv.Stdin)
			_ = stdin.Close()
		}()
	} else {
		_ = stdin.Close()
	}

	state := &runState{}
	processDone := make(chan struct{})

	watchdogPeriod := r.watchdogPeriod(p)
	watchdog := time.AfterFunc(watchdogPeriod, func() {
		state.set(func(s *runState) { s.watchdogFired = true })
		log.Warn("no output from agent process, killing",
			zap.Duration("watchdog", watchdogPeriod))
		_ = cmd.Process.Kill()
	})
	defer watchdog.Stop()

	if p.Timeout > 0 {
		total := time.AfterFunc(p.Timeout, func() {
			state.set(func(s *runState) { s.totalExpired = true })
			log.Warn("agent process exceeded total timeout, killing",
				zap.Duration("timeout", p.Timeout))
			_ = cmd.Process.Kill()
		})
		defer total.Stop()
	}

	go func() {
		select {
		case <-ctx.Done():
			state.set(func(s *runState) { s.aborted = true })
			log.Info("aborting agent process")
			_ = cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-processDone:
			case <-time.After(sigtermGrace):
				log.Warn("agent process ignored SIGTERM, killing")
				_ = cmd.Process.Kill()
			}
		case <-processDone:
		}
	}()

	var stderrBuf strings.Builder
	var pipes errgroup.Group
	pipes.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderr)
		return err
	})

	acc := newAccumulator(r.family.NewParser(), q)
	acc.sessionID = p.SessionID

	// Chunk-level read loop rather than a line scanner: the watchdog must
	// reset on any child output, including a long line still in flight.
	buf := make([]byte, 64*1024)
	var pending []byte
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			// A straggling chunk can arrive while a kill is in flight;
			// never re-arm the timer once it has fired.
			if _, expired, fired := state.snapshot(); !fired && !expired {
				watchdog.Reset(watchdogPeriod)
			}
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				acc.consumeLine(string(pending[:idx]))
				pending = pending[idx+1:]
			}
		}
		if readErr != nil {
			break
		}
	}
	if len(pending) > 0 {
		acc.consumeLine(string(pending))
	}

	_ = pipes.Wait()
	waitErr := cmd.Wait()
	close(processDone)
	watchdog.Stop()

	exitCode := 0
	if waitErr != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	aborted, totalExpired, watchdogFired := state.snapshot()
	stderrText := strings.TrimSpace(stderrBuf.String())

	var terminalErr *events.AgentEvent
	resultAborted := false
	switch {
	case watchdogFired:
		resultAborted = true
		terminalErr = &events.AgentEvent{
			Kind:     events.KindError,
			Message:  fmt.Sprintf("No output for %dms (watchdog)", watchdogPeriod.Milliseconds()),
			Category: events.CategoryTimeout,
		}
	case totalExpired:
		resultAborted = true
		terminalErr = &events.AgentEvent{
			Kind:     events.KindError,
			Message:  fmt.Sprintf("Timed out after %dms", p.Timeout.Milliseconds()),
			Category: events.CategoryTimeout,
		}
	case aborted:
		resultAborted = true
		terminalErr = &events.AgentEvent{
			Kind:     events.KindError,
			Message:  "Aborted",
			Category: events.CategoryAborted,
		}
	case exitCode != 0:
		msg, cat, ok := r.family.ClassifyExit(exitCode, stderrText)
		if !ok {
			msg = stderrText
			if msg == "" {
				msg = fmt.Sprintf("Process exited with code %d", exitCode)
			}
			cat = classify.Classify(msg)
		}
		terminalErr = &events.AgentEvent{
			Kind:     events.KindError,
			Message:  msg,
			Category: cat,
		}
	}

	if terminalErr != nil {
		log.Warn("agent process failed",
			zap.Int("exit_code", exitCode),
			zap.String("error", terminalErr.Message),
			zap.String("category", string(terminalErr.Category)))
		q.Push(*terminalErr)
	} else {
		log.Info("agent process finished",
			zap.Duration("duration", time.Since(start)),
			zap.String("session_id", acc.sessionID))
	}

	result := events.RunResult{
		Text:       acc.text.String(),
		SessionID:  acc.sessionID,
		DurationMS: time.Since(start).Milliseconds(),
		Usage:      acc.usage,
		Aborted:    resultAborted,
	}
	result.ApplyMeta(acc.meta)

	q.Push(events.AgentEvent{Kind: events.KindDone, Result: &result})
	q.Close()
}

// failStart reports a spawn failure: one fatal error event, then done.
func (r *Runner) failStart(q *eventQueue, start time.Time, msg string) {
	r.logger.Error("failed to start agent process", zap.String("error", msg))
	q.Push(events.AgentEvent{
		Kind:     events.KindError,
		Message:  msg,
		Category: events.CategoryFatal,
	})
	q.Push(events.AgentEvent{Kind: events.KindDone, Result: &events.RunResult{
		DurationMS: time.Since(start).Milliseconds(),
	}})
	q.Close()
}

// buildEnv layers the child environment: inherited, minus family strips and
// backend ClearEnv, plus backend Env, plus the auth overlay last so that auth
// always wins.
func (r *Runner) buildEnv(p Params) []string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}

	authEnv, strip := r.family.AuthEnv(p)
	for _, k := range strip {
		delete(env, k)
	}
	if r.backend != nil {
		for _, k := range r.backend.ClearEnv {
			delete(env, k)
		}
		for k, v := range r.backend.Env {
			env[k] = v
		}
	}
	for k, v := range authEnv {
		env[k] = v
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// watchdogPeriod picks the inactivity bound for this execution. Backend
// overrides win (floored at one second); otherwise the period scales with the
// total timeout, clamped between a per-kind floor and a shared ceiling.
func (r *Runner) watchdogPeriod(p Params) time.Duration {
	resume := p.SessionID != ""
	if r.backend != nil {
		if resume && r.backend.ResumeNoOutputTimeout > 0 {
			return maxDuration(r.backend.ResumeNoOutputTimeout, time.Second)
		}
		if !resume && r.backend.FreshNoOutputTimeout > 0 {
			return maxDuration(r.backend.FreshNoOutputTimeout, time.Second)
		}
	}

	period := time.Duration(float64(p.Timeout) * 0.8)
	floor := watchdogFreshFloor
	if resume {
		floor = watchdogResumeFloor
	}
	if period < floor {
		period = floor
	}
	if period > watchdogCeiling {
		period = watchdogCeiling
	}
	return period
}

// accumulator folds parsed lines into the outgoing stream and the run result.
type accumulator struct {
	parser    protocol.LineParser
	q         *eventQueue
	text      strings.Builder
	sessionID string
	usage     *events.Usage
	meta      *events.ResultMeta
}

func newAccumulator(parser protocol.LineParser, q *eventQueue) *accumulator {
	return &accumulator{parser: parser, q: q}
}

func (a *accumulator) consumeLine(line string) {
	for _, pl := range a.parser.ParseLine(line) {
		if pl.SessionID != "" {
			a.sessionID = pl.SessionID
		}
		if pl.Usage != nil {
			a.usage = pl.Usage
		}
		if pl.Meta != nil {
			a.meta = pl.Meta
		}
		if pl.Event == nil {
			continue
		}
		if pl.Event.Kind == events.KindText {
			a.text.WriteString(pl.Event.Text)
		}
		a.q.Push(*pl.Event)
	}
}

// MaskSecret renders a secret safe for logs: a short prefix and suffix with
// the middle elided. Short secrets are fully masked.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "…" + s[len(s)-2:]
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
