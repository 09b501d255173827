// Package util provides common utility functions used across the x-oauth2 module.
package util

import (
	"strings"
	"unicode/utf8"
)

// SafeTruncate safely truncates a string to maxLen bytes without panicking.
// Returns the original string if it's shorter than maxLen, otherwise returns
// the first maxLen bytes. This prevents index out of bounds errors when
// logging sensitive data like tokens, where only a prefix should be shown.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
//
// Example:
//
//	SafeTruncate("very-long-token-abc123", 8) // Returns: "very-lon"
//	SafeTruncate("short", 10)                  // Returns: "short"
//	SafeTruncate("test", -1)                   // Returns: ""
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// SummarizeBody turns a response body into a single-line string of at most
// maxLen bytes for error messages and logs. Invalid UTF-8 is replaced.
func SummarizeBody(body []byte, maxLen int) string {
	s := strings.ToValidUTF8(string(body), "�")
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	s = SafeTruncate(s, maxLen)
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "..."
}
