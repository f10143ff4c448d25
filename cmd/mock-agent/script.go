package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StepKind discriminates scripted steps.
type StepKind string

const (
	StepText   StepKind = "text"
	StepStatus StepKind = "status"
	StepTool   StepKind = "tool"
	StepError  StepKind = "error"
)

// scriptDuration accepts Go duration strings in YAML ("250ms", "2s").
type scriptDuration time.Duration

func (d *scriptDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid delay %q: %w", s, err)
	}
	*d = scriptDuration(parsed)
	return nil
}

// Step is one scripted envelope. Delay is slept before emitting.
type Step struct {
	Kind  StepKind       `yaml:"kind"`
	Text  string         `yaml:"text,omitempty"`
	Tool  string         `yaml:"tool,omitempty"`
	Delay scriptDuration `yaml:"delay,omitempty"`
}

// Script is a full scripted conversation.
type Script struct {
	Prompt string `yaml:"-"`
	Steps  []Step `yaml:"steps"`
}

func (s *Script) outputChars() int {
	n := 0
	for _, step := range s.Steps {
		if step.Kind == StepText {
			n += len(step.Text)
		}
	}
	return n
}

// loadScript reads a YAML script file, or builds the default echo
// conversation when no path is given.
func loadScript(path, prompt string) (*Script, error) {
	if path == "" {
		return defaultScript(prompt), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("script %s has no steps", path)
	}
	script.Prompt = prompt
	return &script, nil
}

func defaultScript(prompt string) *Script {
	return &Script{
		Prompt: prompt,
		Steps: []Step{
			{Kind: StepStatus, Text: "thinking"},
			{Kind: StepText, Text: "You said: ", Delay: scriptDuration(50 * time.Millisecond)},
			{Kind: StepText, Text: prompt, Delay: scriptDuration(50 * time.Millisecond)},
		},
	}
}
