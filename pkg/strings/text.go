// Package strings holds small text helpers shared by output formatters.
package strings

import (
	"strings"
)

// DefaultMessageMaxLen is the width messages are truncated to in summary tables.
const DefaultMessageMaxLen = 60

const ellipsis = "..."

// SingleLine truncates s to maxLen runes on one line. Whitespace runs,
// newlines included, collapse into single spaces and a truncated result ends
// in "...". maxLen is clamped so at least one rune survives.
func SingleLine(s string, maxLen int) string {
	if maxLen < len(ellipsis)+1 {
		maxLen = len(ellipsis) + 1
	}

	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-len(ellipsis)]) + ellipsis
	}
	return s
}

// Indent prefixes every line of text with prefix. Empty text stays empty.
func Indent(text, prefix string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
