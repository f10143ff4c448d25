// Package classify maps free-form agent error text to an ErrorCategory.
// Matching is case-insensitive and substring based; the first matching rule
// group wins and anything unmatched is fatal.
package classify

import (
	"strings"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
)

var retryablePatterns = []string{
	"rate limit",
	"429",
	"503",
	"overloaded",
	"etimedout",
	"econnreset",
	"econnrefused",
	"network",
}

var contextOverflowPatterns = []string{
	"context length",
	"context window",
	"context overflow",
	"too many tokens",
	"maximum context",
	"token limit",
}

var fatalAuthPatterns = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"invalid key",
	"authentication",
}

// Classify categorizes an error message.
func Classify(message string) events.ErrorCategory {
	lower := strings.ToLower(message)

	for _, p := range retryablePatterns {
		if strings.Contains(lower, p) {
			return events.CategoryRetryable
		}
	}
	for _, p := range contextOverflowPatterns {
		if strings.Contains(lower, p) {
			return events.CategoryContextOverflow
		}
	}
	for _, p := range fatalAuthPatterns {
		if strings.Contains(lower, p) {
			return events.CategoryFatal
		}
	}
	return events.CategoryFatal
}
