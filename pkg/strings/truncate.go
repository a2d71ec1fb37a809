// Package strings holds small text helpers for terminal output.
package strings

import (
	"strings"
)

// DefaultCellMaxLen is the widest a free-text table cell gets before it is
// cut short.
const DefaultCellMaxLen = 60

// MinTruncateLen is the minimum maxLen value for Truncate.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate flattens s onto one line and cuts it to maxLen runes, ending with
// "..." when something was cut. Runs of whitespace, newlines included,
// collapse into a single space. maxLen is clamped to MinTruncateLen.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
