// Package main implements a mock agent binary that speaks the claude-code
// stream-json protocol on stdout. It stands in for a real agent CLI in
// manual end-to-end runs: point a backend config's command at this binary
// and every turn plays a scripted conversation.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/remoteclaw/remoteclaw/pkg/claudecode"
)

// sessionID is unique per process; each turn spawns its own mock-agent.
var sessionID = fmt.Sprintf("mock-session-%d", os.Getpid())

func main() {
	opts := parseArgs(os.Args[1:])

	prompt := opts.prompt
	if prompt == "" {
		prompt = readStdinPrompt()
	}
	if opts.resume != "" {
		sessionID = opts.resume
	}

	script, err := loadScript(opts.scriptPath, prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock-agent: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	play(enc, script, opts.model)
}

type options struct {
	model      string
	resume     string
	prompt     string
	scriptPath string
}

// parseArgs tolerates the full claude-code flag surface: value flags are
// consumed with their argument, other --flags are skipped, and the last
// bare argument is the prompt.
func parseArgs(args []string) options {
	var opts options
	valueFlags := map[string]*string{
		"--model":       &opts.model,
		"--resume":      &opts.resume,
		"--mock-script": &opts.scriptPath,
	}
	skip := false
	for i, arg := range args {
		if skip {
			skip = false
			continue
		}
		if target, ok := valueFlags[arg]; ok {
			if i+1 < len(args) {
				*target = args[i+1]
				skip = true
			}
			continue
		}
		if arg == "--max-turns" || arg == "--output-format" {
			skip = true
			continue
		}
		if strings.HasPrefix(arg, "--") {
			continue
		}
		opts.prompt = arg
	}
	if opts.scriptPath == "" {
		opts.scriptPath = os.Getenv("MOCK_AGENT_SCRIPT")
	}
	return opts
}

func readStdinPrompt() string {
	var sb strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}

// play renders the script as stream-json envelopes, one per line.
func play(enc *json.Encoder, script *Script, model string) {
	if model == "" {
		model = "mock-default"
	}

	_ = enc.Encode(claudecode.CLIMessage{
		Type:      claudecode.MessageTypeSystem,
		Subtype:   claudecode.SubtypeInit,
		SessionID: sessionID,
	})

	start := time.Now()
	toolSeq := 0
	for _, step := range script.Steps {
		if step.Delay > 0 {
			time.Sleep(time.Duration(step.Delay))
		}
		switch step.Kind {
		case StepText:
			_ = enc.Encode(claudecode.CLIMessage{
				Type:      claudecode.MessageTypeAssistant,
				SessionID: sessionID,
				Message: &claudecode.AssistantMessage{
					Role:  "assistant",
					Model: model,
					Content: []claudecode.ContentBlock{
						{Type: "text", Text: step.Text},
					},
				},
			})
		case StepStatus:
			_ = enc.Encode(claudecode.CLIMessage{
				Type:      claudecode.MessageTypeSystem,
				Subtype:   claudecode.SubtypeStatus,
				SessionID: sessionID,
				Status:    step.Text,
			})
		case StepTool:
			toolSeq++
			_ = enc.Encode(claudecode.CLIMessage{
				Type:      claudecode.MessageTypeAssistant,
				SessionID: sessionID,
				Message: &claudecode.AssistantMessage{
					Role: "assistant",
					Content: []claudecode.ContentBlock{{
						Type:  "tool_use",
						ID:    fmt.Sprintf("toolu_mock_%d", toolSeq),
						Name:  step.Tool,
						Input: map[string]any{"command": step.Text},
					}},
				},
			})
		case StepError:
			_ = enc.Encode(claudecode.CLIMessage{
				Type:       claudecode.MessageTypeResult,
				Subtype:    claudecode.ResultSubtypeErrorDuringRun,
				SessionID:  sessionID,
				IsError:    true,
				DurationMS: time.Since(start).Milliseconds(),
				Result:     json.RawMessage(fmt.Sprintf("%q", step.Text)),
			})
			os.Exit(1)
		}
	}

	_ = enc.Encode(claudecode.CLIMessage{
		Type:       claudecode.MessageTypeResult,
		Subtype:    claudecode.ResultSubtypeSuccess,
		SessionID:  sessionID,
		DurationMS: time.Since(start).Milliseconds(),
		NumTurns:   1,
		StopReason: "end_turn",
		Usage: &claudecode.Usage{
			InputTokens:  int64(len(script.Prompt)/4) + 1,
			OutputTokens: int64(script.outputChars()/4) + 1,
		},
	})
}
