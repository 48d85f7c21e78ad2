package utils

import "strings"

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// trims the ends. XML abstracts often arrive with embedded newlines.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString truncates a string to a maximum rune length.
func TruncateString(str string, maxLength int) string {
	runes := []rune(str)
	if len(runes) <= maxLength {
		return str
	}

	return string(runes[:maxLength])
}

// FirstNonEmpty returns the first non-empty string from its arguments.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// SplitAndTrim splits a string on a separator and drops empty elements.
func SplitAndTrim(str, sep string) []string {
	var out []string

	for _, part := range strings.Split(str, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
