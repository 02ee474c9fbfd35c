package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxListItems is how many warning entries a summary shows before
// collapsing the rest.
const DefaultMaxListItems = 10

// TruncateSimple performs simple end truncation with "..." suffix.
// UTF-8 safe.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// TruncateList keeps the first max items and replaces the rest with a
// muted "... and N more" line.
func TruncateList(items []string, max int) []string {
	if max <= 0 {
		max = DefaultMaxListItems
	}
	if len(items) <= max {
		return items
	}
	out := append([]string(nil), items[:max]...)
	return append(out, RenderMuted("... and "+strconv.Itoa(len(items)-max)+" more"))
}

// Indent prefixes every non-empty line of text with n tree indents.
func Indent(text string, n int) string {
	prefix := strings.Repeat(treeIndent, n)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
