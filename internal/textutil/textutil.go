// Package textutil holds the single-line text shaping shared by the coach
// client and the TUI.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate cuts text to at most limit runes, ending in "..." when it had to
// cut and there is room for the marker.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// CompactSingleLine collapses all whitespace runs to one space and truncates.
func CompactSingleLine(text string, limit int) string {
	return Truncate(strings.Join(strings.Fields(text), " "), limit)
}
