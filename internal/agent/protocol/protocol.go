// Package protocol parses the line-delimited JSON protocols of the supported
// agent CLI families into normalized events. One parser instance serves one
// runtime execution; parsers are never called concurrently.
//
// All parsers share the same tolerance contract: blank lines and lines that
// are not valid JSON yield no ParsedLine and never an error.
package protocol

import (
	"encoding/json"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
)

// LineParser turns one UTF-8 stdout line into zero or more ParsedLine
// records. A single envelope carrying several content parts yields several.
type LineParser interface {
	ParseLine(line string) []events.ParsedLine
}

// stringifyRaw renders a raw JSON value as a plain string: JSON strings are
// unquoted, everything else is passed through in its compact encoding.
func stringifyRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// stringifyInput renders a structured tool input as a JSON string.
func stringifyInput(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	b, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(b)
}
