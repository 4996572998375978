package text

import "strings"

// Truncate returns the first max runes of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// IsBlank is true for empty or whitespace-only text.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// FlattenNewlines joins lines with spaces, for quoting text on a single line.
func FlattenNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
