package engine

import "strings"

// Evaluate reports whether submitted matches expected. Both sides are
// trimmed and lower-cased, then compared exactly.
func Evaluate(submitted, expected string) bool {
	return normalize(submitted) == normalize(expected)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
